package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	internal "github.com/ZanzyTHEbar/dsnp-batch/dsnp"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/batch"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/ledger"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/metrics"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/publish"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config stores all configuration of the library.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Storage StorageConfig `mapstructure:"storage"`
	Publish PublishConfig `mapstructure:"publish"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// BatchConfig stores batch file writer settings.
type BatchConfig struct {
	RowGroupSize int64  `mapstructure:"rowGroupSize"`
	Compression  string `mapstructure:"compression"`
}

// ScannerConfig stores log window scanner settings.
type ScannerConfig struct {
	Walkback    int64 `mapstructure:"walkback"`
	MaxWalkback int64 `mapstructure:"maxWalkback"`
}

// LedgerConfig stores the publisher contract and node endpoint.
type LedgerConfig struct {
	RPCURL   string `mapstructure:"rpcUrl"`
	Contract string `mapstructure:"contract"`
	// FromBlock enables history replay for subscriptions. Unset means live only.
	FromBlock *uint64 `mapstructure:"fromBlock"`
}

type StorageConfig struct {
	Dir string `mapstructure:"dir"`
	// MaxFileSize caps fetched batch files in bytes. Zero disables the cap.
	MaxFileSize int64 `mapstructure:"maxFileSize"`
}

// PublishConfig stores publish queue thresholds.
type PublishConfig struct {
	MaxBatch int           `mapstructure:"maxBatch"`
	MaxDelay time.Duration `mapstructure:"maxDelay"`
}

// Load reads configuration from file or environment variables. Without a
// path, config.yaml is looked up in the working directory, then etc/dsnp,
// then the global config file. Environment variables use the DSNP prefix
// with dots replaced by underscores, e.g. DSNP_SCANNER_WALKBACK.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("batch.rowGroupSize", internal.DefaultRowGroupSize)
	v.SetDefault("batch.compression", internal.DefaultCompression)
	v.SetDefault("scanner.walkback", internal.DefaultWalkback)
	v.SetDefault("scanner.maxWalkback", internal.DefaultMaxWalkback)
	v.SetDefault("ledger.rpcUrl", "")
	v.SetDefault("ledger.contract", "")
	v.SetDefault("storage.dir", internal.DefaultStorageDir)
	v.SetDefault("storage.maxFileSize", internal.DefaultMaxFileSize)
	v.SetDefault("publish.maxBatch", internal.DefaultQueueSize)
	v.SetDefault("publish.maxDelay", internal.DefaultQueueDelay)

	v.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default exists for fromBlock, so the env binding must be explicit.
	if err := v.BindEnv("ledger.fromBlock"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if _, statErr := os.Stat(internal.DefaultGlobalConfigFile); statErr == nil {
			v.SetConfigFile(internal.DefaultGlobalConfigFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges without touching the network.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Batch.RowGroupSize <= 0 {
		errs = append(errs, fmt.Errorf("batch.rowGroupSize must be positive, got %d", c.Batch.RowGroupSize))
	}
	switch strings.ToLower(c.Batch.Compression) {
	case "snappy", "zstd", "gzip", "none", "uncompressed":
	default:
		errs = append(errs, fmt.Errorf("batch.compression %q is not supported", c.Batch.Compression))
	}
	if c.Scanner.MaxWalkback <= 0 {
		errs = append(errs, fmt.Errorf("scanner.maxWalkback must be positive, got %d", c.Scanner.MaxWalkback))
	}
	if c.Scanner.Walkback < 1 || c.Scanner.Walkback > c.Scanner.MaxWalkback {
		errs = append(errs, fmt.Errorf("%w: scanner.walkback %d not in [1, %d]", ledger.ErrInvalidWalkback, c.Scanner.Walkback, c.Scanner.MaxWalkback))
	}
	if c.Storage.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("storage.maxFileSize must not be negative, got %d", c.Storage.MaxFileSize))
	}
	if c.Publish.MaxBatch <= 0 {
		errs = append(errs, fmt.Errorf("publish.maxBatch must be positive, got %d", c.Publish.MaxBatch))
	}
	if c.Publish.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("publish.maxDelay must not be negative, got %s", c.Publish.MaxDelay))
	}
	if c.Ledger.Contract != "" && !common.IsHexAddress(c.Ledger.Contract) {
		errs = append(errs, fmt.Errorf("ledger.contract %q is not an address", c.Ledger.Contract))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Logger returns the root logger at the configured level.
func (c *Config) Logger() zerolog.Logger {
	logger := internal.GetLogger()
	if level, err := zerolog.ParseLevel(c.Log.Level); err == nil {
		logger = logger.Level(level)
	}
	return logger
}

func (c *Config) WriterOptions(logger *zerolog.Logger, m *metrics.Metrics) batch.WriterOptions {
	return batch.WriterOptions{
		Logger:       logger,
		Metrics:      m,
		RowGroupSize: c.Batch.RowGroupSize,
		Compression:  c.Batch.Compression,
	}
}

// ReaderOptions returns batch reader options for fetched files.
func (c *Config) ReaderOptions(logger *zerolog.Logger) []batch.ReaderOption {
	opts := []batch.ReaderOption{batch.WithMaxSize(c.Storage.MaxFileSize)}
	if logger != nil {
		opts = append(opts, batch.WithReaderLogger(*logger))
	}
	return opts
}

// ScanOptions fills scanner settings for a scan over [earliest, latest].
func (c *Config) ScanOptions(filter ledger.Filter, earliest, latest int64, logger *zerolog.Logger, m *metrics.Metrics) ledger.ScanOptions {
	return ledger.ScanOptions{
		Filter:        filter,
		EarliestBlock: earliest,
		LatestBlock:   latest,
		Walkback:      c.Scanner.Walkback,
		MaxWalkback:   c.Scanner.MaxWalkback,
		Logger:        logger,
		Metrics:       m,
	}
}

// SubscribeOptions fills subscriber settings.
func (c *Config) SubscribeOptions(filter ledger.Filter, logger *zerolog.Logger, m *metrics.Metrics) ledger.SubscribeOptions {
	return ledger.SubscribeOptions{
		Filter:      filter,
		FromBlock:   c.Ledger.FromBlock,
		Walkback:    c.Scanner.Walkback,
		MaxWalkback: c.Scanner.MaxWalkback,
		Logger:      logger,
		Metrics:     m,
	}
}

// QueueOptions fills publish queue thresholds.
func (c *Config) QueueOptions(logger *zerolog.Logger, m *metrics.Metrics) publish.QueueOptions {
	return publish.QueueOptions{
		MaxBatch: c.Publish.MaxBatch,
		MaxDelay: c.Publish.MaxDelay,
		Logger:   logger,
		Metrics:  m,
	}
}
