// Package config loads dvrd's tunable parameters: sensible protocol
// defaults, overridable via flags, a config file, or DVRD_* environment
// variables. This surfaces the exclusion prefix list and every cycle
// timing as configuration rather than baking them in as constants.
package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable of the protocol engine.
type Config struct {
	Port              int           `mapstructure:"port"`
	ListenWindow      time.Duration `mapstructure:"listen_window"`
	ExpireThreshold   time.Duration `mapstructure:"expire_threshold"`
	CyclePeriod       time.Duration `mapstructure:"cycle_period"`
	SocketReadTimeout time.Duration `mapstructure:"socket_read_timeout"`
	ExcludedPrefixes  []string      `mapstructure:"excluded_prefixes"`
	RouteCommandPath  string        `mapstructure:"route_command_path"`
}

// Defaults returns the recommended out-of-the-box settings.
func Defaults() Config {
	return Config{
		Port:              9999,
		ListenWindow:      2 * time.Second,
		ExpireThreshold:   15 * time.Second,
		CyclePeriod:       5 * time.Second,
		SocketReadTimeout: 2 * time.Second,
		ExcludedPrefixes:  []string{"127.", "10.0.2."},
		RouteCommandPath:  "route",
	}
}

// BindFlags registers the config surface onto a pflag.FlagSet, for use
// by cobra commands.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.Int("port", d.Port, "UDP port for route advertisements")
	fs.Duration("listen-window", d.ListenWindow, "how long to listen for advertisements each cycle")
	fs.Duration("expire-threshold", d.ExpireThreshold, "age after which a learned route is withdrawn")
	fs.Duration("cycle-period", d.CyclePeriod, "wall-clock interval between send phases")
	fs.Duration("socket-read-timeout", d.SocketReadTimeout, "read deadline for the shared listen socket")
	fs.StringSlice("excluded-prefixes", d.ExcludedPrefixes, "CIDR text prefixes excluded from the RIB and advertisements")
	fs.String("route-command-path", d.RouteCommandPath, "path to the external route(8)-like command")
}

// Load builds a Config from defaults, an optional config file, and
// environment variables prefixed DVRD_, in that order of increasing
// precedence, then lets any bound pflag.FlagSet override all of it.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("port", d.Port)
	v.SetDefault("listen_window", d.ListenWindow)
	v.SetDefault("expire_threshold", d.ExpireThreshold)
	v.SetDefault("cycle_period", d.CyclePeriod)
	v.SetDefault("socket_read_timeout", d.SocketReadTimeout)
	v.SetDefault("excluded_prefixes", d.ExcludedPrefixes)
	v.SetDefault("route_command_path", d.RouteCommandPath)

	v.SetEnvPrefix("DVRD")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	if fs != nil {
		bindings := map[string]string{
			"port":                "port",
			"listen-window":       "listen_window",
			"expire-threshold":    "expire_threshold",
			"cycle-period":        "cycle_period",
			"socket-read-timeout": "socket_read_timeout",
			"excluded-prefixes":   "excluded_prefixes",
			"route-command-path":  "route_command_path",
		}
		for flagName, key := range bindings {
			if flag := fs.Lookup(flagName); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
