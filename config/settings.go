// Package config holds the merge engine's runtime settings and the viper
// loader that populates them from a config file, environment variables,
// and CLI flags, in that order of increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	AppVersion = "v0.1.0"
	LogLevel   = "info"
	LogFormat  = "text" // "text" or "json"

	// AdminPort is the port the merge-job admin HTTP server listens on.
	AdminPort  = "8088"
	AdminToken = ""

	// BatchSize holds the "batch-size" setting as loaded by Load. The
	// merge executor and Analyze do not read it: their message streams
	// page with stream.DefaultBatchSize.
	BatchSize = 500

	// BackupRetentionCount is how many timestamped target-database
	// backups storage/sqlite.Repository.Backup keeps before it starts
	// pruning the oldest.
	BackupRetentionCount = 5

	DefaultDBURI = "file:chmerge.db"
)

// Load binds viper to CHMERGE_-prefixed environment variables and an
// optional config file, then copies the resolved values into the package
// vars above. Call it once at process startup, after cobra has parsed
// flags into v (see cmd/chmerge).
func Load(v *viper.Viper) error {
	v.SetEnvPrefix("CHMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", LogLevel)
	v.SetDefault("log-format", LogFormat)
	v.SetDefault("admin-port", AdminPort)
	v.SetDefault("admin-token", AdminToken)
	v.SetDefault("batch-size", BatchSize)
	v.SetDefault("backup-retention-count", BackupRetentionCount)
	v.SetDefault("db-uri", DefaultDBURI)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("chmerge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/chmerge")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	LogLevel = v.GetString("log-level")
	LogFormat = v.GetString("log-format")
	AdminPort = v.GetString("admin-port")
	AdminToken = v.GetString("admin-token")
	BatchSize = v.GetInt("batch-size")
	BackupRetentionCount = v.GetInt("backup-retention-count")
	DefaultDBURI = v.GetString("db-uri")

	return nil
}
