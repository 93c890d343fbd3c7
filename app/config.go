package app

import (
	"os"
	"strings"

	"github.com/dan13ram/yusd-settlement/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var (
	Config models.Config
)

func InitConfig(configFile string, envFile string) {
	log.Debug("[CONFIG] Initializing config")
	readConfigFromConfigFile(configFile)
	readConfigFromENV(envFile)
	readSecretsFromGSM()
	validateConfig()
	log.Info("[CONFIG] Config initialized")
}

func readConfigFromConfigFile(configFile string) bool {
	if configFile == "" {
		log.Debug("[CONFIG] No config file provided")
		return false
	}

	log.Debug("[CONFIG] Reading config file")
	var yamlFile, err = os.ReadFile(configFile)
	if err != nil {
		log.Fatalf("[CONFIG] Error reading config file %q: %s\n", configFile, err.Error())
	}

	err = yaml.Unmarshal(yamlFile, &Config)
	if err != nil {
		log.Fatalf("[CONFIG] Error unmarshalling config file %q: %s\n", configFile, err.Error())
	}
	log.Debug("[CONFIG] Config loaded from file")
	return true
}

func validAddress(address string) bool {
	return common.IsHexAddress(address) && common.HexToAddress(address) != (common.Address{})
}

func validAddresses(field string, addresses []string) {
	for _, address := range addresses {
		if !validAddress(address) {
			log.Fatalf("[CONFIG] %s contains invalid address %q", field, address)
		}
	}
}

func validateConfig() {
	log.Debug("[CONFIG] Validating config")

	// mongodb
	if Config.MongoDB.URI == "" {
		log.Fatal("[CONFIG] MongoDB.URI is required")
	}
	if Config.MongoDB.Database == "" {
		log.Fatal("[CONFIG] MongoDB.Database is required")
	}
	if Config.MongoDB.TimeoutMillis == 0 {
		log.Fatal("[CONFIG] MongoDB.TimeoutMillis is required")
	}

	// ethereum
	if Config.Ethereum.Enabled {
		if Config.Ethereum.RPCURL == "" {
			log.Fatal("[CONFIG] Ethereum.RPCURL is required")
		}
		if Config.Ethereum.RPCTimeoutMillis == 0 {
			log.Fatal("[CONFIG] Ethereum.RPCTimeoutMillis is required")
		}
		if Config.Ethereum.Mnemonic == "" && Config.Ethereum.GcpKmsKeyName == "" {
			log.Fatal("[CONFIG] Ethereum.Mnemonic or Ethereum.GcpKmsKeyName is required")
		}
		if Config.Ethereum.TxTimeoutMillis == 0 {
			log.Fatal("[CONFIG] Ethereum.TxTimeoutMillis is required")
		}
	}
	if Config.Ethereum.ChainID == "" {
		log.Fatal("[CONFIG] Ethereum.ChainID is required")
	}

	// settlement
	if Config.Settlement.InstanceId == "" {
		log.Fatal("[CONFIG] Settlement.InstanceId is required")
	}
	if Config.Settlement.DomainName == "" {
		log.Fatal("[CONFIG] Settlement.DomainName is required")
	}
	if Config.Settlement.DomainVersion == "" {
		log.Fatal("[CONFIG] Settlement.DomainVersion is required")
	}
	if !validAddress(Config.Settlement.CoreAddress) {
		log.Fatal("[CONFIG] Settlement.CoreAddress is invalid")
	}
	if Config.Settlement.VerifyingContract != "" && !validAddress(Config.Settlement.VerifyingContract) {
		log.Fatal("[CONFIG] Settlement.VerifyingContract is invalid")
	}
	if !validAddress(Config.Settlement.YusdToken) {
		log.Fatal("[CONFIG] Settlement.YusdToken is invalid")
	}
	if len(Config.Settlement.TrustedSigners) == 0 {
		log.Fatal("[CONFIG] Settlement.TrustedSigners is required")
	}
	validAddresses("Settlement.TrustedSigners", Config.Settlement.TrustedSigners)
	validAddresses("Settlement.Delegates", Config.Settlement.Delegates)
	validAddresses("Settlement.FundsManagers", Config.Settlement.FundsManagers)
	validAddresses("Settlement.CollateralManagers", Config.Settlement.CollateralManagers)
	validAddresses("Settlement.Custodians", Config.Settlement.Custodians)
	if Config.Settlement.FeeDestination != "" && !common.IsHexAddress(Config.Settlement.FeeDestination) {
		log.Fatal("[CONFIG] Settlement.FeeDestination is invalid")
	}
	if Config.Settlement.RewardsDestination != "" && !common.IsHexAddress(Config.Settlement.RewardsDestination) {
		log.Fatal("[CONFIG] Settlement.RewardsDestination is invalid")
	}
	for _, bp := range []uint64{Config.Settlement.MintFeeBP, Config.Settlement.RedeemFeeBP, Config.Settlement.IncomeFeeBP} {
		if bp > 10000 {
			log.Fatal("[CONFIG] Settlement fee basis points must not exceed 10000")
		}
	}

	// assets
	if len(Config.Assets) == 0 {
		log.Fatal("[CONFIG] Assets is required")
	}
	for _, asset := range Config.Assets {
		if !validAddress(asset.Address) {
			log.Fatalf("[CONFIG] Asset %q has an invalid address", asset.Symbol)
		}
		if asset.FeedAddress != "" && !validAddress(asset.FeedAddress) {
			log.Fatalf("[CONFIG] Asset %q has an invalid feed address", asset.Symbol)
		}
		if asset.FeedAddress != "" && asset.HeartbeatMillis <= 0 {
			log.Fatalf("[CONFIG] Asset %q has a feed but no heartbeat", asset.Symbol)
		}
	}

	// limits
	for name, limit := range map[string]models.RateLimitConfig{"MintLimit": Config.MintLimit, "RedeemLimit": Config.RedeemLimit} {
		if limit.PeriodMillis < 0 {
			log.Fatalf("[CONFIG] %s.PeriodMillis must not be negative", name)
		}
		if limit.PeriodMillis == 0 {
			continue
		}
		amount, err := decimal.NewFromString(limit.MaxAmount)
		if err != nil || amount.IsNegative() {
			log.Fatalf("[CONFIG] %s.MaxAmount %q is invalid", name, limit.MaxAmount)
		}
	}

	// push oracle
	if Config.PushOracle.Enabled {
		if len(Config.PushOracle.Pushers) == 0 {
			log.Fatal("[CONFIG] PushOracle.Pushers is required")
		}
		validAddresses("PushOracle.Pushers", Config.PushOracle.Pushers)
	}

	// api
	if Config.API.Enabled {
		if Config.API.ListenAddress == "" {
			log.Fatal("[CONFIG] API.ListenAddress is required")
		}
		if Config.API.RequestsPerMinute <= 0 {
			log.Fatal("[CONFIG] API.RequestsPerMinute is required")
		}
		if Config.API.SignatureMaxAgeMillis <= 0 {
			log.Fatal("[CONFIG] API.SignatureMaxAgeMillis is required")
		}
	}

	// services
	if Config.OrderExecutor.Enabled && Config.OrderExecutor.IntervalMillis == 0 {
		log.Fatal("[CONFIG] OrderExecutor.IntervalMillis is required")
	}
	if Config.HealthCheck.IntervalMillis == 0 {
		log.Fatal("[CONFIG] HealthCheck.IntervalMillis is required")
	}

	// logger
	if strings.TrimSpace(Config.Logger.Level) == "" {
		log.Fatal("[CONFIG] Logger.Level is required")
	}

	log.Debug("[CONFIG] Config validated")
}
