package models

type Config struct {
	GoogleSecretManager GoogleSecretManagerConfig `yaml:"google_secret_manager" json:"google_secret_manager"`
	HealthCheck         HealthCheckConfig         `yaml:"health_check" json:"health_check"`
	Logger              LoggerConfig              `yaml:"logger" json:"logger"`
	MongoDB             MongoConfig               `yaml:"mongodb" json:"mongo_db"`
	Ethereum            EthereumConfig            `yaml:"ethereum" json:"ethereum"`
	Settlement          SettlementConfig          `yaml:"settlement" json:"settlement"`
	Assets              []AssetConfig             `yaml:"assets" json:"assets"`
	MintLimit           RateLimitConfig           `yaml:"mint_limit" json:"mint_limit"`
	RedeemLimit         RateLimitConfig           `yaml:"redeem_limit" json:"redeem_limit"`
	PushOracle          PushOracleConfig          `yaml:"push_oracle" json:"push_oracle"`
	API                 APIConfig                 `yaml:"api" json:"api"`
	OrderExecutor       ServiceConfig             `yaml:"order_executor" json:"order_executor"`
}

type GoogleSecretManagerConfig struct {
	Enabled               bool   `yaml:"enabled" json:"enabled"`
	ProjectId             string `yaml:"project_id" json:"project_id"`
	MongoSecretName       string `yaml:"mongo_secret_name" json:"mongo_secret_name"`
	RPCURLSecretName      string `yaml:"rpc_url_secret_name" json:"rpc_url_secret_name"`
	EthMnemonicSecretName string `yaml:"eth_mnemonic_secret_name" json:"eth_mnemonic_secret_name"`
}

type HealthCheckConfig struct {
	IntervalMillis int64 `yaml:"interval_ms" json:"interval_ms"`
	ReadLastHealth bool  `yaml:"read_last_health" json:"read_last_health"`
}

type LoggerConfig struct {
	Level string `yaml:"level" json:"level"`
}

type MongoConfig struct {
	URI           string `yaml:"uri" json:"uri"`
	Database      string `yaml:"database" json:"database"`
	TimeoutMillis int64  `yaml:"timeout_ms" json:"timeout_ms"`
}

type EthereumConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	RPCURL           string `yaml:"rpc_url" json:"rpcurl"`
	RPCTimeoutMillis int64  `yaml:"rpc_timeout_ms" json:"rpc_timeout_ms"`
	ChainID          string `yaml:"chain_id" json:"chain_id"`
	Mnemonic         string `yaml:"mnemonic" json:"mnemonic"`
	HDPath           string `yaml:"hd_path" json:"hd_path"`
	GcpKmsKeyName    string `yaml:"gcp_kms_key_name" json:"gcp_kms_key_name"`
	TxTimeoutMillis  int64  `yaml:"tx_timeout_ms" json:"tx_timeout_ms"`
}

type SettlementConfig struct {
	InstanceId         string   `yaml:"instance_id" json:"instance_id"`
	DomainName         string   `yaml:"domain_name" json:"domain_name"`
	DomainVersion      string   `yaml:"domain_version" json:"domain_version"`
	VerifyingContract  string   `yaml:"verifying_contract" json:"verifying_contract"`
	CoreAddress        string   `yaml:"core_address" json:"core_address"`
	YusdToken          string   `yaml:"yusd_token" json:"yusd_token"`
	TrustedSigners     []string `yaml:"trusted_signers" json:"trusted_signers"`
	Delegates          []string `yaml:"delegates" json:"delegates"`
	FundsManagers      []string `yaml:"funds_managers" json:"funds_managers"`
	CollateralManagers []string `yaml:"collateral_managers" json:"collateral_managers"`
	Custodians         []string `yaml:"custodians" json:"custodians"`
	FeeDestination     string   `yaml:"fee_destination" json:"fee_destination"`
	RewardsDestination string   `yaml:"rewards_destination" json:"rewards_destination"`
	MintFeeBP          uint64   `yaml:"mint_fee_bp" json:"mint_fee_bp"`
	RedeemFeeBP        uint64   `yaml:"redeem_fee_bp" json:"redeem_fee_bp"`
	IncomeFeeBP        uint64   `yaml:"income_fee_bp" json:"income_fee_bp"`
	DevLedger          bool     `yaml:"dev_ledger" json:"dev_ledger"`
}

type AssetConfig struct {
	Address         string `yaml:"address" json:"address"`
	Symbol          string `yaml:"symbol" json:"symbol"`
	Decimals        uint8  `yaml:"decimals" json:"decimals"`
	FeedAddress     string `yaml:"feed_address" json:"feed_address"`
	HeartbeatMillis int64  `yaml:"heartbeat_ms" json:"heartbeat_ms"`
}

// RateLimitConfig amounts are decimal yUSD strings, e.g. "1000000.5".
type RateLimitConfig struct {
	PeriodMillis int64  `yaml:"period_ms" json:"period_ms"`
	MaxAmount    string `yaml:"max_amount" json:"max_amount"`
}

type PushOracleConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Pushers []string `yaml:"pushers" json:"pushers"`
}

type APIConfig struct {
	Enabled               bool    `yaml:"enabled" json:"enabled"`
	ListenAddress         string  `yaml:"listen_address" json:"listen_address"`
	RequestsPerMinute     float64 `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst                 int     `yaml:"burst" json:"burst"`
	SignatureMaxAgeMillis int64   `yaml:"signature_max_age_ms" json:"signature_max_age_ms"`
}

type ServiceConfig struct {
	Enabled        bool  `yaml:"enabled" json:"enabled"`
	IntervalMillis int64 `yaml:"interval_ms" json:"interval_ms"`
	BatchSize      int64 `yaml:"batch_size" json:"batch_size"`
}
