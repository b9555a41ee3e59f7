package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadFlagOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Set("cycle-period", "10s"))
	require.NoError(t, fs.Set("excluded-prefixes", "127.,192.168.99."))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.CyclePeriod)
	require.Equal(t, []string{"127.", "192.168.99."}, cfg.ExcludedPrefixes)
}
