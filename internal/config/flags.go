package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-n string   node id seed
//	-p string   comma separated peer addresses
//	-s string   network secret
//	-t int      network token validity, minutes
//	-b string   storage backend: memory, postgres, s3
//	-d string   PostgreSQL DSN
//	-u string   S3 access key
//	-w string   S3 secret key
//	-k string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-r int      replication factor
//	-o int      DHT operation timeout, seconds
//	-l string   log level
//	-f string   log format: json, text
//
// Arguments the set does not define, such as -c handled by parseJson, are
// skipped by flagx.ParseKnown.
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run the node on")
	fs.StringVar(&config.NodeID, "n", config.NodeID, "node id seed")
	peers := fs.String("p", strings.Join(config.Peers, ","), "comma separated peer addresses")
	fs.StringVar(&config.NetworkSecret, "s", config.NetworkSecret, "network secret")
	tokenTTL := fs.Int("t", int(config.TokenTTL.Minutes()), "network token validity (in minutes)")

	fs.StringVar(&config.StorageBackend, "b", config.StorageBackend, "storage backend (memory, postgres, s3)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "w", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "k", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.IntVar(&config.Replication, "r", config.Replication, "replication factor")
	opTimeout := fs.Int("o", int(config.OperationTimeout.Seconds()), "DHT operation timeout (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	// converted flags only override values that were given explicitly, so
	// sub-minute durations from the JSON file survive
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["p"] {
		config.Peers = flagx.SplitList(*peers)
	}
	if set["t"] {
		config.TokenTTL = time.Duration(*tokenTTL) * time.Minute
	}
	if set["o"] {
		config.OperationTimeout = time.Duration(*opTimeout) * time.Second
	}
}
