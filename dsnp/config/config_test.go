package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	internal "github.com/ZanzyTHEbar/dsnp-batch/dsnp"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/batch"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/ledger"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir    string
	origDir    string
	origGlobal string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))

	suite.origGlobal = internal.DefaultGlobalConfigFile
	internal.DefaultGlobalConfigFile = filepath.Join(suite.T().TempDir(), "global", "config.yaml")
}

func (suite *ConfigTestSuite) TearDownTest() {
	internal.DefaultGlobalConfigFile = suite.origGlobal
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadWithDefaults() {
	cfg, err := Load("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "info", cfg.Log.Level)
	assert.Equal(suite.T(), internal.DefaultRowGroupSize, cfg.Batch.RowGroupSize)
	assert.Equal(suite.T(), internal.DefaultCompression, cfg.Batch.Compression)
	assert.Equal(suite.T(), internal.DefaultWalkback, cfg.Scanner.Walkback)
	assert.Equal(suite.T(), internal.DefaultMaxWalkback, cfg.Scanner.MaxWalkback)
	assert.Equal(suite.T(), internal.DefaultStorageDir, cfg.Storage.Dir)
	assert.Equal(suite.T(), internal.DefaultMaxFileSize, cfg.Storage.MaxFileSize)
	assert.Nil(suite.T(), cfg.Ledger.FromBlock)
	assert.Equal(suite.T(), internal.DefaultQueueSize, cfg.Publish.MaxBatch)
	assert.Equal(suite.T(), internal.DefaultQueueDelay, cfg.Publish.MaxDelay)
}

func (suite *ConfigTestSuite) TestLoadFallsBackToGlobalFile() {
	global := internal.DefaultGlobalConfigFile
	require.NoError(suite.T(), os.MkdirAll(filepath.Dir(global), 0o755))
	require.NoError(suite.T(), os.WriteFile(global, []byte("scanner:\n  walkback: 42\n"), 0o644))

	cfg, err := Load("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(42), cfg.Scanner.Walkback)

	// A config in the working directory takes precedence.
	suite.writeConfig("scanner:\n  walkback: 7\n")
	cfg, err = Load("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(7), cfg.Scanner.Walkback)
}

func (suite *ConfigTestSuite) TestLoadWithFile() {
	path := suite.writeConfig(`
log:
  level: debug
batch:
  rowGroupSize: 512
  compression: zstd
scanner:
  walkback: 250
  maxWalkback: 500
ledger:
  rpcUrl: "ws://127.0.0.1:8546"
  contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
  fromBlock: 1200
storage:
  dir: "./batches"
publish:
  maxBatch: 50
  maxDelay: 5s
`)

	cfg, err := Load(path)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "debug", cfg.Log.Level)
	assert.EqualValues(suite.T(), 512, cfg.Batch.RowGroupSize)
	assert.Equal(suite.T(), "zstd", cfg.Batch.Compression)
	assert.EqualValues(suite.T(), 250, cfg.Scanner.Walkback)
	assert.EqualValues(suite.T(), 500, cfg.Scanner.MaxWalkback)
	assert.Equal(suite.T(), "ws://127.0.0.1:8546", cfg.Ledger.RPCURL)
	require.NotNil(suite.T(), cfg.Ledger.FromBlock)
	assert.EqualValues(suite.T(), 1200, *cfg.Ledger.FromBlock)
	assert.Equal(suite.T(), "./batches", cfg.Storage.Dir)
	assert.Equal(suite.T(), 50, cfg.Publish.MaxBatch)
	assert.Equal(suite.T(), 5*time.Second, cfg.Publish.MaxDelay)
	assert.Equal(suite.T(), zerolog.DebugLevel, cfg.Logger().GetLevel())
}

func (suite *ConfigTestSuite) TestEnvironmentOverrides() {
	suite.T().Setenv("DSNP_SCANNER_WALKBACK", "42")
	suite.T().Setenv("DSNP_BATCH_COMPRESSION", "gzip")
	suite.T().Setenv("DSNP_LEDGER_FROMBLOCK", "7")

	cfg, err := Load("")
	require.NoError(suite.T(), err)

	assert.EqualValues(suite.T(), 42, cfg.Scanner.Walkback)
	assert.Equal(suite.T(), "gzip", cfg.Batch.Compression)
	require.NotNil(suite.T(), cfg.Ledger.FromBlock)
	assert.EqualValues(suite.T(), 7, *cfg.Ledger.FromBlock)
}

func (suite *ConfigTestSuite) TestInvalidWalkbackRejected() {
	path := suite.writeConfig(`
scanner:
  walkback: 20000
`)
	_, err := Load(path)
	assert.ErrorIs(suite.T(), err, ErrInvalidConfig)
	assert.ErrorIs(suite.T(), err, ledger.ErrInvalidWalkback)
}

func (suite *ConfigTestSuite) TestMissingFile() {
	_, err := Load(filepath.Join(suite.tempDir, "absent.yaml"))
	assert.Error(suite.T(), err)
}

func (suite *ConfigTestSuite) TestMalformedFile() {
	path := suite.writeConfig("batch: [unterminated\n")
	_, err := Load(path)
	assert.Error(suite.T(), err)
}

func (suite *ConfigTestSuite) TestOptionsHelpers() {
	cfg, err := Load("")
	require.NoError(suite.T(), err)

	w, err := batch.NewWriter(cfg.WriterOptions(nil, nil))
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), w)

	opts := cfg.ScanOptions(ledger.Filter{}, 0, 5000, nil, nil)
	assert.NoError(suite.T(), opts.Validate())
	assert.Equal(suite.T(), internal.DefaultWalkback, opts.Walkback)

	sub := cfg.SubscribeOptions(ledger.Filter{}, nil, nil)
	assert.Nil(suite.T(), sub.FromBlock)
	assert.Equal(suite.T(), internal.DefaultWalkback, sub.Walkback)
	assert.Equal(suite.T(), internal.DefaultMaxWalkback, sub.MaxWalkback)

	assert.Len(suite.T(), cfg.ReaderOptions(nil), 1)
	logger := zerolog.Nop()
	assert.Len(suite.T(), cfg.ReaderOptions(&logger), 2)

	q := cfg.QueueOptions(nil, nil)
	assert.Equal(suite.T(), internal.DefaultQueueSize, q.MaxBatch)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Log:     LogConfig{Level: "warn"},
		Batch:   BatchConfig{RowGroupSize: 10, Compression: "snappy"},
		Scanner: ScannerConfig{Walkback: 10, MaxWalkback: 10},
		Publish: PublishConfig{MaxBatch: 1},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"zero row group", func(c *Config) { c.Batch.RowGroupSize = 0 }, true},
		{"unknown compression", func(c *Config) { c.Batch.Compression = "lz77" }, true},
		{"walkback zero", func(c *Config) { c.Scanner.Walkback = 0 }, true},
		{"walkback over max", func(c *Config) { c.Scanner.Walkback = 11 }, true},
		{"zero queue size", func(c *Config) { c.Publish.MaxBatch = 0 }, true},
		{"negative delay", func(c *Config) { c.Publish.MaxDelay = -time.Second }, true},
		{"bad contract", func(c *Config) { c.Ledger.Contract = "0x12" }, true},
		{"negative max file size", func(c *Config) { c.Storage.MaxFileSize = -1 }, true},
		{"uncompressed", func(c *Config) { c.Batch.Compression = "none" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
