package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dan13ram/yusd-settlement/models"
	"github.com/stretchr/testify/assert"

	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetOutput(io.Discard)
}

func exitPanics(t *testing.T) {
	log.StandardLogger().ExitFunc = func(num int) { panic(fmt.Sprintf("exit %d", num)) }
	t.Cleanup(func() { log.StandardLogger().ExitFunc = nil })
}

func loadSampleConfig(t *testing.T) {
	Config = models.Config{}
	assert.True(t, readConfigFromConfigFile("../config.sample.yml"))
}

func TestReadConfigFromConfigFile(t *testing.T) {
	t.Run("Config File Provided", func(t *testing.T) {
		Config = models.Config{}
		read := readConfigFromConfigFile("../config.sample.yml")

		assert.Equal(t, true, read)
		assert.Equal(t, "mongodb-database", Config.MongoDB.Database)
		assert.Equal(t, int64(2000), Config.MongoDB.TimeoutMillis)
		assert.Equal(t, "yusd-settlement-01", Config.Settlement.InstanceId)
		assert.Equal(t, uint64(1000), Config.Settlement.IncomeFeeBP)
		assert.Len(t, Config.Assets, 1)
		assert.Equal(t, uint8(6), Config.Assets[0].Decimals)
		assert.Equal(t, "10000000", Config.MintLimit.MaxAmount)
		assert.Equal(t, float64(60), Config.API.RequestsPerMinute)
		assert.Equal(t, int64(60000), Config.Ethereum.TxTimeoutMillis)
		assert.True(t, Config.Settlement.DevLedger)
	})

	t.Run("No Config File Provided", func(t *testing.T) {
		read := readConfigFromConfigFile("")
		assert.Equal(t, false, read)
	})

	t.Run("Invalid Config File Path", func(t *testing.T) {
		exitPanics(t)
		assert.Panics(t, func() { readConfigFromConfigFile("../config.sample.invalid.yml") })
	})

	t.Run("Invalid Config File Contents", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "config.yml")
		assert.NoError(t, os.WriteFile(file, []byte("mongodb: [unterminated"), 0o600))

		exitPanics(t)
		assert.Panics(t, func() { readConfigFromConfigFile(file) })
	})
}

func TestReadConfigFromENV(t *testing.T) {
	t.Run("Overrides File Values", func(t *testing.T) {
		loadSampleConfig(t)

		t.Setenv("MONGODB_DATABASE", "from-env")
		t.Setenv("SETTLEMENT_TRUSTED_SIGNERS", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8, 0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC,")
		t.Setenv("SETTLEMENT_MINT_FEE_BP", "25")
		t.Setenv("API_REQUESTS_PER_MINUTE", "12.5")
		t.Setenv("ETH_ENABLED", "true")
		t.Setenv("ETH_GCP_KMS_KEY_NAME", "projects/p/locations/l/keyRings/r/cryptoKeys/k/cryptoKeyVersions/1")
		t.Setenv("SETTLEMENT_DEV_LEDGER", "false")

		readConfigFromENV("")

		assert.Equal(t, "from-env", Config.MongoDB.Database)
		assert.Equal(t, []string{
			"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
		}, Config.Settlement.TrustedSigners)
		assert.Equal(t, uint64(25), Config.Settlement.MintFeeBP)
		assert.Equal(t, 12.5, Config.API.RequestsPerMinute)
		assert.True(t, Config.Ethereum.Enabled)
		assert.Equal(t, "projects/p/locations/l/keyRings/r/cryptoKeys/k/cryptoKeyVersions/1", Config.Ethereum.GcpKmsKeyName)
		assert.False(t, Config.Settlement.DevLedger)
	})

	t.Run("Ignores Unparseable Values", func(t *testing.T) {
		loadSampleConfig(t)

		t.Setenv("MONGODB_TIMEOUT_MS", "soon")
		t.Setenv("API_BURST", "many")
		t.Setenv("HEALTH_CHECK_READ_LAST_HEALTH", "maybe")

		readConfigFromENV("")

		assert.Equal(t, int64(2000), Config.MongoDB.TimeoutMillis)
		assert.Equal(t, 10, Config.API.Burst)
		assert.True(t, Config.HealthCheck.ReadLastHealth)
	})

	t.Run("Missing Env File", func(t *testing.T) {
		loadSampleConfig(t)
		readConfigFromENV("../missing.env")
		assert.Equal(t, "mongodb-database", Config.MongoDB.Database)
	})
}

func TestInitConfig(t *testing.T) {
	t.Run("Config Initialization Success", func(t *testing.T) {
		Config = models.Config{}
		InitConfig("../config.sample.yml", "../sample.env")
		assert.Equal(t, "yusd-settlement-01", Config.Settlement.InstanceId)
	})

	t.Run("Config Initialization No Config File", func(t *testing.T) {
		Config = models.Config{}
		InitConfig("", "../sample.env")
		assert.Equal(t, "31337", Config.Ethereum.ChainID)
		assert.Equal(t, "USDC", Config.Assets[0].Symbol)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Run("Valid Configuration", func(t *testing.T) {
		loadSampleConfig(t)
		assert.NotPanics(t, func() { validateConfig() })
	})

	t.Run("Empty Configuration", func(t *testing.T) {
		Config = models.Config{}
		exitPanics(t)
		assert.Panics(t, func() { validateConfig() })
	})

	invalid := map[string]func(c *models.Config){
		"Missing Mongo URI":             func(c *models.Config) { c.MongoDB.URI = "" },
		"Missing Mongo Timeout":         func(c *models.Config) { c.MongoDB.TimeoutMillis = 0 },
		"Ethereum Without RPC":          func(c *models.Config) { c.Ethereum.Enabled = true; c.Ethereum.RPCURL = "" },
		"Ethereum Without Operator Key": func(c *models.Config) { c.Ethereum.Enabled = true },
		"Ethereum Without Tx Timeout": func(c *models.Config) {
			c.Ethereum.Enabled = true
			c.Ethereum.Mnemonic = "test test test test test test test test test test test junk"
			c.Ethereum.TxTimeoutMillis = 0
		},
		"Missing Chain ID":            func(c *models.Config) { c.Ethereum.ChainID = "" },
		"Missing Instance Id":         func(c *models.Config) { c.Settlement.InstanceId = "" },
		"Zero Core Address":           func(c *models.Config) { c.Settlement.CoreAddress = "0x0000000000000000000000000000000000000000" },
		"Bad Verifying Contract":      func(c *models.Config) { c.Settlement.VerifyingContract = "0x1234" },
		"No Trusted Signers":          func(c *models.Config) { c.Settlement.TrustedSigners = nil },
		"Bad Delegate":                func(c *models.Config) { c.Settlement.Delegates = []string{"delegate"} },
		"Bad Fee Destination":         func(c *models.Config) { c.Settlement.FeeDestination = "fees" },
		"Fee Above Denominator":       func(c *models.Config) { c.Settlement.RedeemFeeBP = 10001 },
		"No Assets":                   func(c *models.Config) { c.Assets = nil },
		"Feed Without Heartbeat":      func(c *models.Config) { c.Assets[0].HeartbeatMillis = 0 },
		"Negative Limit Period":       func(c *models.Config) { c.MintLimit.PeriodMillis = -1 },
		"Bad Limit Amount":            func(c *models.Config) { c.RedeemLimit.MaxAmount = "lots" },
		"Push Oracle Without Pushers": func(c *models.Config) { c.PushOracle.Enabled = true; c.PushOracle.Pushers = nil },
		"API Without Rate":            func(c *models.Config) { c.API.RequestsPerMinute = 0 },
		"Executor Without Interval":   func(c *models.Config) { c.OrderExecutor.IntervalMillis = 0 },
		"Missing Health Interval":     func(c *models.Config) { c.HealthCheck.IntervalMillis = 0 },
		"Missing Log Level":           func(c *models.Config) { c.Logger.Level = " " },
	}

	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			loadSampleConfig(t)
			mutate(&Config)
			exitPanics(t)
			assert.Panics(t, func() { validateConfig() })
		})
	}

	t.Run("Disabled Limit Ignores Amount", func(t *testing.T) {
		loadSampleConfig(t)
		Config.MintLimit.PeriodMillis = 0
		Config.MintLimit.MaxAmount = ""
		assert.NotPanics(t, func() { validateConfig() })
	})
}

func TestEnvAssets(t *testing.T) {
	t.Run("With And Without Feed", func(t *testing.T) {
		t.Setenv("TEST_ASSETS", "USDC:0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0:6:0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9:3600000,DAI:0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9:18")

		var assets []models.AssetConfig
		envAssets("TEST_ASSETS", &assets)

		assert.Equal(t, []models.AssetConfig{
			{
				Symbol:          "USDC",
				Address:         "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
				Decimals:        6,
				FeedAddress:     "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9",
				HeartbeatMillis: 3600000,
			},
			{
				Symbol:   "DAI",
				Address:  "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9",
				Decimals: 18,
			},
		}, assets)
	})

	t.Run("Malformed Entry Keeps Previous Value", func(t *testing.T) {
		t.Setenv("TEST_ASSETS", "USDC:0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")

		assets := []models.AssetConfig{{Symbol: "KEEP"}}
		envAssets("TEST_ASSETS", &assets)

		assert.Equal(t, "KEEP", assets[0].Symbol)
	})
}
