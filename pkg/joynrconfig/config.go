// Package joynrconfig loads runtime configuration from a file (YAML
// or JSON, whatever viper detects) plus environment variable
// overrides, and hot-reloads it on change. The file watch itself is
// delegated to viper's built-in fsnotify integration — the same
// fsnotify dependency pkg/credswatcher uses directly for certificate
// reloads — wired up the way pkg/credswatcher's StartWatching pairs a
// watcher with an onChange callback.
package joynrconfig

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/joynr-go/joynr/pkg/joynrlog"
)

var logger = joynrlog.For("joynrconfig")

// Config is the full set of tunables for a joynr runtime process.
type Config struct {
	LogLevel string `mapstructure:"logLevel"`

	AdminAddr string `mapstructure:"adminAddr"`
	GRPCAddr  string `mapstructure:"grpcAddr"`

	GlobalDirectoryAddr string `mapstructure:"globalDirectoryAddr"`
	ClusterControllerID string `mapstructure:"clusterControllerId"`

	PersistenceFile    string `mapstructure:"persistenceFile"`
	PersistenceEnabled bool   `mapstructure:"persistenceEnabled"`

	ExpirySweepInterval time.Duration `mapstructure:"expirySweepInterval"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeatInterval"`
	DefaultCacheMaxAge  time.Duration `mapstructure:"defaultCacheMaxAge"`

	EnableAccessController bool `mapstructure:"enableAccessController"`
	AccessControllerAudit  bool `mapstructure:"accessControllerAudit"`

	WorkerPoolSize  int `mapstructure:"workerPoolSize"`
	WorkerQueueSize int `mapstructure:"workerQueueSize"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("adminAddr", ":9990")
	v.SetDefault("grpcAddr", ":9991")
	v.SetDefault("clusterControllerId", "default")
	v.SetDefault("persistenceFile", "joynr-capabilities.json")
	v.SetDefault("persistenceEnabled", true)
	v.SetDefault("expirySweepInterval", 30*time.Second)
	v.SetDefault("heartbeatInterval", time.Minute)
	v.SetDefault("defaultCacheMaxAge", 10*time.Minute)
	v.SetDefault("enableAccessController", false)
	v.SetDefault("accessControllerAudit", true)
	v.SetDefault("workerPoolSize", 8)
	v.SetDefault("workerQueueSize", 256)
}

// Load reads configFile (if non-empty) plus JOYNR_-prefixed
// environment variable overrides into a Config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("JOYNR")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watcher hot-reloads configuration from disk, invoking onChange with
// the freshly decoded Config whenever the underlying file changes —
// mirroring pkg/credswatcher's watch-then-callback shape, but for
// runtime config instead of TLS material.
type Watcher struct {
	v        *viper.Viper
	onChange func(*Config)
}

// Watch starts watching configFile for changes, calling onChange
// (after the initial load) on every subsequent change. Returns the
// initial Config synchronously.
func Watch(configFile string, onChange func(*Config)) (*Config, *Watcher, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("JOYNR")
	v.AutomaticEnv()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}

	w := &Watcher{v: v, onChange: onChange}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Infof("config file changed: %s", e.Name)
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			logger.Errorf("failed to decode reloaded config: %v", err)
			return
		}
		w.onChange(&next)
	})
	v.WatchConfig()

	return &cfg, w, nil
}
