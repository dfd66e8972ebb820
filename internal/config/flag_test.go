package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"node",
				"-a", "127.0.0.1:7000", "-n", "node-a", "-p", "n1:7000,n2:7000", "-s", "secret", "-t", "5",
				"-b", "s3", "-d", "db", "-u", "user", "-w", "password", "-k", "bucket", "-g", "us-west-1",
				"-e", "http://endpoint", "-r", "2", "-o", "3", "-l", "debug", "-f", "text",
			},
			expected: &Config{
				ListenAddr:       "127.0.0.1:7000",
				NodeID:           "node-a",
				Peers:            []string{"n1:7000", "n2:7000"},
				NetworkSecret:    "secret",
				TokenTTL:         5 * time.Minute,
				StorageBackend:   "s3",
				DatabaseDSN:      "db",
				S3AccessKey:      "user",
				S3SecretKey:      "password",
				S3Bucket:         "bucket",
				S3Region:         "us-west-1",
				S3BaseEndpoint:   "http://endpoint",
				Replication:      2,
				OperationTimeout: 3 * time.Second,
				LogLevel:         "debug",
				LogFormat:        "text",
			},
		},
		{
			name:     "config flag is ignored, durations untouched",
			args:     []string{"node", "-c", "node.json", "-a", ":9"},
			expected: &Config{ListenAddr: ":9", TokenTTL: 90 * time.Second, OperationTimeout: 1500 * time.Millisecond},
		},
		{
			name:        "bad number",
			args:        []string{"node", "-r", "many"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{TokenTTL: 90 * time.Second, OperationTimeout: 1500 * time.Millisecond}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
