package app

import (
	"os"
	"strconv"
	"strings"

	"github.com/dan13ram/yusd-settlement/models"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func envInt64(name string, target *int64) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Warnf("[ENV] Error parsing %s: %s", name, err.Error())
		return
	}
	*target = parsed
}

func envUint64(name string, target *uint64) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		log.Warnf("[ENV] Error parsing %s: %s", name, err.Error())
		return
	}
	*target = parsed
}

func envBool(name string, target *bool) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Warnf("[ENV] Error parsing %s: %s", name, err.Error())
		return
	}
	*target = parsed
}

func envString(name string, target *string) {
	if value := os.Getenv(name); value != "" {
		*target = value
	}
}

func envList(name string, target *[]string) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	*target = list
}

// envAssets reads entries of the form SYMBOL:address:decimals[:feed:heartbeat_ms].
func envAssets(name string, target *[]models.AssetConfig) {
	var entries []string
	envList(name, &entries)
	if len(entries) == 0 {
		return
	}

	var assets []models.AssetConfig
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 && len(parts) != 5 {
			log.Warnf("[ENV] Error parsing %s: malformed asset %q", name, entry)
			return
		}
		decimals, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			log.Warnf("[ENV] Error parsing %s: %s", name, err.Error())
			return
		}
		asset := models.AssetConfig{
			Symbol:   parts[0],
			Address:  parts[1],
			Decimals: uint8(decimals),
		}
		if len(parts) == 5 {
			heartbeat, err := strconv.ParseInt(parts[4], 10, 64)
			if err != nil {
				log.Warnf("[ENV] Error parsing %s: %s", name, err.Error())
				return
			}
			asset.FeedAddress = parts[3]
			asset.HeartbeatMillis = heartbeat
		}
		assets = append(assets, asset)
	}
	*target = assets
}

func readConfigFromENV(envFile string) {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil {
			log.Warn("[ENV] Error loading .env file: ", err.Error())
		}
	}

	log.Debug("[ENV] Reading config from env")

	// mongodb
	envString("MONGODB_URI", &Config.MongoDB.URI)
	envString("MONGODB_DATABASE", &Config.MongoDB.Database)
	envInt64("MONGODB_TIMEOUT_MS", &Config.MongoDB.TimeoutMillis)

	// ethereum
	envBool("ETH_ENABLED", &Config.Ethereum.Enabled)
	envString("ETH_RPC_URL", &Config.Ethereum.RPCURL)
	envInt64("ETH_RPC_TIMEOUT_MS", &Config.Ethereum.RPCTimeoutMillis)
	envString("ETH_CHAIN_ID", &Config.Ethereum.ChainID)
	envString("ETH_MNEMONIC", &Config.Ethereum.Mnemonic)
	envString("ETH_HD_PATH", &Config.Ethereum.HDPath)
	envString("ETH_GCP_KMS_KEY_NAME", &Config.Ethereum.GcpKmsKeyName)
	envInt64("ETH_TX_TIMEOUT_MS", &Config.Ethereum.TxTimeoutMillis)

	// settlement
	envString("SETTLEMENT_INSTANCE_ID", &Config.Settlement.InstanceId)
	envString("SETTLEMENT_DOMAIN_NAME", &Config.Settlement.DomainName)
	envString("SETTLEMENT_DOMAIN_VERSION", &Config.Settlement.DomainVersion)
	envString("SETTLEMENT_VERIFYING_CONTRACT", &Config.Settlement.VerifyingContract)
	envString("SETTLEMENT_CORE_ADDRESS", &Config.Settlement.CoreAddress)
	envString("SETTLEMENT_YUSD_TOKEN", &Config.Settlement.YusdToken)
	envList("SETTLEMENT_TRUSTED_SIGNERS", &Config.Settlement.TrustedSigners)
	envList("SETTLEMENT_DELEGATES", &Config.Settlement.Delegates)
	envList("SETTLEMENT_FUNDS_MANAGERS", &Config.Settlement.FundsManagers)
	envList("SETTLEMENT_COLLATERAL_MANAGERS", &Config.Settlement.CollateralManagers)
	envList("SETTLEMENT_CUSTODIANS", &Config.Settlement.Custodians)
	envString("SETTLEMENT_FEE_DESTINATION", &Config.Settlement.FeeDestination)
	envString("SETTLEMENT_REWARDS_DESTINATION", &Config.Settlement.RewardsDestination)
	envUint64("SETTLEMENT_MINT_FEE_BP", &Config.Settlement.MintFeeBP)
	envUint64("SETTLEMENT_REDEEM_FEE_BP", &Config.Settlement.RedeemFeeBP)
	envUint64("SETTLEMENT_INCOME_FEE_BP", &Config.Settlement.IncomeFeeBP)
	envBool("SETTLEMENT_DEV_LEDGER", &Config.Settlement.DevLedger)

	envAssets("ASSETS", &Config.Assets)

	// limits
	envInt64("MINT_LIMIT_PERIOD_MS", &Config.MintLimit.PeriodMillis)
	envString("MINT_LIMIT_MAX_AMOUNT", &Config.MintLimit.MaxAmount)
	envInt64("REDEEM_LIMIT_PERIOD_MS", &Config.RedeemLimit.PeriodMillis)
	envString("REDEEM_LIMIT_MAX_AMOUNT", &Config.RedeemLimit.MaxAmount)

	// push oracle
	envBool("PUSH_ORACLE_ENABLED", &Config.PushOracle.Enabled)
	envList("PUSH_ORACLE_PUSHERS", &Config.PushOracle.Pushers)

	// api
	envBool("API_ENABLED", &Config.API.Enabled)
	envString("API_LISTEN_ADDRESS", &Config.API.ListenAddress)
	if value := os.Getenv("API_REQUESTS_PER_MINUTE"); value != "" {
		rpm, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Warn("[ENV] Error parsing API_REQUESTS_PER_MINUTE: ", err.Error())
		} else {
			Config.API.RequestsPerMinute = rpm
		}
	}
	if value := os.Getenv("API_BURST"); value != "" {
		burst, err := strconv.Atoi(value)
		if err != nil {
			log.Warn("[ENV] Error parsing API_BURST: ", err.Error())
		} else {
			Config.API.Burst = burst
		}
	}
	envInt64("API_SIGNATURE_MAX_AGE_MS", &Config.API.SignatureMaxAgeMillis)

	// order executor
	envBool("ORDER_EXECUTOR_ENABLED", &Config.OrderExecutor.Enabled)
	envInt64("ORDER_EXECUTOR_INTERVAL_MS", &Config.OrderExecutor.IntervalMillis)
	envInt64("ORDER_EXECUTOR_BATCH_SIZE", &Config.OrderExecutor.BatchSize)

	// health check
	envInt64("HEALTH_CHECK_INTERVAL_MS", &Config.HealthCheck.IntervalMillis)
	envBool("HEALTH_CHECK_READ_LAST_HEALTH", &Config.HealthCheck.ReadLastHealth)

	// logging
	envString("LOG_LEVEL", &Config.Logger.Level)

	// google secret manager
	envBool("GOOGLE_SECRET_MANAGER_ENABLED", &Config.GoogleSecretManager.Enabled)
	envString("GOOGLE_PROJECT_ID", &Config.GoogleSecretManager.ProjectId)
	envString("GOOGLE_MONGO_SECRET_NAME", &Config.GoogleSecretManager.MongoSecretName)
	envString("GOOGLE_RPC_URL_SECRET_NAME", &Config.GoogleSecretManager.RPCURLSecretName)
	envString("GOOGLE_ETH_MNEMONIC_SECRET_NAME", &Config.GoogleSecretManager.EthMnemonicSecretName)

	log.Debug("[ENV] Config read from env")
}
