package flagx

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("node", flag.ContinueOnError)
	fs.String("a", "", "address")
	fs.String("p", "", "peers")
	fs.String("b", "", "backend")
	fs.Bool("v", false, "verbose")
	return fs
}

func TestKnown(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "separate values",
			args: []string{"-a", ":7000", "-p", "n1:7000,n2:7000", "-s", "secret"},
			want: []string{"-a", ":7000", "-p", "n1:7000,n2:7000"},
		},
		{
			name: "equals form",
			args: []string{"-b=postgres", "-d=dsn"},
			want: []string{"-b=postgres"},
		},
		{
			name: "double dash",
			args: []string{"--a", ":1", "--b=s3"},
			want: []string{"--a", ":1", "--b=s3"},
		},
		{
			name: "value starting with dash",
			args: []string{"-a", "-weird", "-p", "n1"},
			want: []string{"-a", "-weird", "-p", "n1"},
		},
		{
			name: "bool flag takes no value",
			args: []string{"-v", "-a", ":1"},
			want: []string{"-v", "-a", ":1"},
		},
		{
			name: "trailing flag without value",
			args: []string{"-p"},
			want: []string{"-p"},
		},
		{
			name: "unknown and positional dropped",
			args: []string{"serve", "-c", "node.json", "---a", "-"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Known(nodeFlagSet(), tt.args))
		})
	}
}

func TestParseKnown(t *testing.T) {
	fs := nodeFlagSet()
	require.NoError(t, ParseKnown(fs, []string{"-c", "node.json", "-a", ":7000", "-v"}))
	assert.Equal(t, ":7000", fs.Lookup("a").Value.String())
	assert.Equal(t, "true", fs.Lookup("v").Value.String())
}

func TestConfigPath(t *testing.T) {
	cases := map[string]struct {
		args []string
		want string
	}{
		"short":     {[]string{"-c", "/etc/hive/node.json"}, "/etc/hive/node.json"},
		"long":      {[]string{"-config", "/etc/hive/long.json"}, "/etc/hive/long.json"},
		"absent":    {[]string{"-a", ":7000"}, ""},
		"last wins": {[]string{"-c", "/a.json", "-config", "/b.json"}, "/b.json"},
		"equals":    {[]string{"-c=/eq.json", "-a", ":1"}, "/eq.json"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ConfigPath(tc.args))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"n1:7000", "n2:7000"}, SplitList(" n1:7000, ,n2:7000 ,"))
	assert.Empty(t, SplitList(""))
	assert.Equal(t, []string{"one"}, SplitList("one"))
}
