package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/hivekeeper/internal/flagx"
	"github.com/dmitrijs2005/hivekeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// both "10s" and integer nanoseconds are accepted. Only fields present in
// the file override the current values.
type JsonConfig struct {
	ListenAddr       *string         `json:"listen_addr"`
	NodeID           *string         `json:"node_id"`
	Peers            []string        `json:"peers"`
	NetworkSecret    *string         `json:"network_secret"`
	TokenTTL         *timex.Duration `json:"token_ttl"`
	StorageBackend   *string         `json:"storage_backend"`
	DatabaseDSN      *string         `json:"database_dsn"`
	S3AccessKey      *string         `json:"s3_access_key"`
	S3SecretKey      *string         `json:"s3_secret_key"`
	S3Bucket         *string         `json:"s3_bucket"`
	S3Region         *string         `json:"s3_region"`
	S3BaseEndpoint   *string         `json:"s3_base_endpoint"`
	S3Prefix         *string         `json:"s3_prefix"`
	Replication      *int            `json:"replication"`
	OperationTimeout *timex.Duration `json:"operation_timeout"`
	LogLevel         *string         `json:"log_level"`
	LogFormat        *string         `json:"log_format"`
}

// parseJson loads the file named by -c/-config, if any, into config. It
// panics if the file cannot be read or parsed.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.NodeID, c.NodeID)
	if c.Peers != nil {
		config.Peers = c.Peers
	}
	setString(&config.NetworkSecret, c.NetworkSecret)
	if c.TokenTTL != nil {
		config.TokenTTL = c.TokenTTL.Duration
	}
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Prefix, c.S3Prefix)
	if c.Replication != nil {
		config.Replication = *c.Replication
	}
	if c.OperationTimeout != nil {
		config.OperationTimeout = c.OperationTimeout.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
