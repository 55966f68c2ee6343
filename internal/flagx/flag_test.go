package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-a", ":8000"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "flag with equals",
			args:         []string{"-config=alt.json", "-a", ":8000"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-config=alt.json"},
		},
		{
			name:         "unknown flags and positionals ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag at the end keeps no value",
			args:         []string{"-w"},
			allowedFlags: []string{"-w"},
			want:         []string{"-w"},
		},
		{
			name:         "next dash token is not a value",
			args:         []string{"-c", "-k"},
			allowedFlags: []string{"-c", "-k"},
			want:         []string{"-c", "-k"},
		},
		{
			name:         "several allowed flags keep their order",
			args:         []string{"-a", "127.0.0.1:8000", "-d", "dsn", "-z", "x"},
			allowedFlags: []string{"-d", "-a"},
			want:         []string{"-a", "127.0.0.1:8000", "-d", "dsn"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/relay.json", ConfigPath([]string{"-c", "/etc/relay.json"}))
	assert.Equal(t, "/etc/relay.json", ConfigPath([]string{"-a", ":9000", "-config", "/etc/relay.json"}))
	assert.Equal(t, "/2.json", ConfigPath([]string{"-c", "/1.json", "-config=/2.json"}))
	assert.Empty(t, ConfigPath([]string{"-a", ":9000"}))
}
