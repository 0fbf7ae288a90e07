package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Backend  BackendConfig `mapstructure:"backend"`
	Launch   LaunchConfig  `mapstructure:"launch"`
	Hash     HashConfig    `mapstructure:"hash"`
	LogLevel string        `mapstructure:"log_level"`
}

type BackendConfig struct {
	// Name selects the compute backend: cpu, webgpu, auto or none.
	Name string `mapstructure:"name"`
	// Workers bounds how many execution groups the cpu backend runs at once.
	// Values <= 0 mean GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

type LaunchConfig struct {
	GroupSize int    `mapstructure:"group_size"`
	Policy    string `mapstructure:"policy"`
}

type HashConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Name:    BackendCPU,
			Workers: 0,
		},
		Launch: LaunchConfig{
			GroupSize: 128,
			Policy:    PolicyUnified,
		},
		Hash: HashConfig{
			Seed: 0,
		},
		LogLevel: "info",
	}
}

// flagKeys maps CLI flag names to their config keys.
var flagKeys = map[string]string{
	"backend":       "backend.name",
	"workers":       "backend.workers",
	"group-size":    "launch.group_size",
	"launch-policy": "launch.policy",
	"hash-seed":     "hash.seed",
	"log-level":     "log_level",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("backend", defaults.Backend.Name, "Compute backend: cpu|webgpu|auto|none")
	fs.Int("workers", defaults.Backend.Workers, "Max concurrent execution groups on the cpu backend (0 = GOMAXPROCS)")
	fs.Int("group-size", defaults.Launch.GroupSize, "Lanes per execution group")
	fs.String("launch-policy", defaults.Launch.Policy, "Group-count policy: unified|legacy")
	fs.Uint64("hash-seed", defaults.Hash.Seed, "Default seed for the hash command")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("RAGGEDPOOL")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("raggedpool")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	name, err := NormalizeBackend(cfg.Backend.Name)
	if err != nil {
		return Config{}, err
	}
	cfg.Backend.Name = name

	policy, err := NormalizePolicy(cfg.Launch.Policy)
	if err != nil {
		return Config{}, err
	}
	cfg.Launch.Policy = policy

	if cfg.Launch.GroupSize < 1 {
		return Config{}, fmt.Errorf("launch group size must be >= 1, got %d", cfg.Launch.GroupSize)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("backend.name", c.Backend.Name)
	v.SetDefault("backend.workers", c.Backend.Workers)
	v.SetDefault("launch.group_size", c.Launch.GroupSize)
	v.SetDefault("launch.policy", c.Launch.Policy)
	v.SetDefault("hash.seed", c.Hash.Seed)
	v.SetDefault("log_level", c.LogLevel)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}

	return nil
}

// ParseLogLevel maps a config log level to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}
