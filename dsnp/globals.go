package internal

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	DefaultAppName          = "dsnp"
	DefaultConfigPath       = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultStorageDir       = filepath.Join(DefaultConfigPath, "batches")
	DefaultGlobalConfigFile = filepath.Join(DefaultConfigPath, "config.yaml")

	// Scanner settings. DefaultMaxWalkback reflects the log-count ceiling most
	// RPC providers enforce on a single eth_getLogs call.
	DefaultWalkback    int64 = 1000
	DefaultMaxWalkback int64 = 10000

	// Batch file settings
	DefaultRowGroupSize int64 = 4096
	DefaultCompression        = "snappy"
	DefaultMaxFileSize  int64 = 256 << 20

	// Publish queue settings
	DefaultQueueSize  = 1000
	DefaultQueueDelay = 30 * time.Second
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
