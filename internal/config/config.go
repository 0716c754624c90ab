// Package config loads yogatracker settings from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aadiyog/yogatracker/internal/engine"
)

// Config is the process configuration.
type Config struct {
	ServerAddr        string        `mapstructure:"SERVER_ADDR"`
	DBPath            string        `mapstructure:"DB_PATH"`
	StaticDir         string        `mapstructure:"STATIC_DIR"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	HookDir           string        `mapstructure:"HOOK_DIR"`
	HookTimeoutMs     int           `mapstructure:"HOOK_TIMEOUT_MS"`
	LogFile           string        `mapstructure:"LOG_FILE"`
	AppEnv            string        `mapstructure:"APP_ENV"`
	ReferenceCacheTTL time.Duration `mapstructure:"REFERENCE_CACHE_TTL"`

	Engine engine.Config `mapstructure:"engine"`
}

// Production reports whether APP_ENV selects production behaviour.
func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// HookTimeout returns the hook execution timeout.
func (c Config) HookTimeout() time.Duration {
	return time.Duration(c.HookTimeoutMs) * time.Millisecond
}

// Load reads the configuration. Environment variables win over the file
// named by CONFIG_FILE, which wins over defaults. Engine tunables live
// under the engine key, e.g. engine.start_hold or ENGINE_START_HOLD.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := defaultDataDir()
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("DB_PATH", filepath.Join(dataDir, "yogatracker.db"))
	v.SetDefault("STATIC_DIR", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("HOOK_DIR", filepath.Join(dataDir, "hooks"))
	v.SetDefault("HOOK_TIMEOUT_MS", 5000)
	v.SetDefault("LOG_FILE", filepath.Join(dataDir, "logs", "yogatracker.log"))
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("REFERENCE_CACHE_TTL", 30*time.Minute)

	defaults := engine.DefaultConfig()
	setEngineDefaults(v, defaults)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := Config{Engine: defaults}
	if v.IsSet("engine.profiles") {
		// Profiles from the file replace the defaults wholesale.
		cfg.Engine.Profiles = engine.Profiles{}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("config: SERVER_ADDR must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: DB_PATH must not be empty")
	}
	if c.HookTimeoutMs <= 0 {
		return fmt.Errorf("config: HOOK_TIMEOUT_MS must be positive, got %d", c.HookTimeoutMs)
	}
	if c.ReferenceCacheTTL <= 0 {
		return fmt.Errorf("config: REFERENCE_CACHE_TTL must be positive, got %s", c.ReferenceCacheTTL)
	}
	return c.Engine.Validate()
}

// setEngineDefaults registers the scalar engine keys so that environment
// variables can override them.
func setEngineDefaults(v *viper.Viper, d engine.Config) {
	v.SetDefault("engine.start_hold", d.StartHold)
	v.SetDefault("engine.min_hold", d.MinHold)
	v.SetDefault("engine.exit_threshold_multiplier", d.ExitThresholdMultiplier)
	v.SetDefault("engine.abandon_timeout", d.AbandonTimeout)
	v.SetDefault("engine.transition_min_duration", d.TransitionMinDuration)
	v.SetDefault("engine.transition_timeout", d.TransitionTimeout)
	v.SetDefault("engine.relaxation_threshold", d.RelaxationThreshold)
	v.SetDefault("engine.facing_mismatch_tolerance", d.FacingMismatchTolerance)
	v.SetDefault("engine.relaxation_exit_distance", d.RelaxationExitDistance)
	v.SetDefault("engine.max_relaxation", d.MaxRelaxation)
	v.SetDefault("engine.relaxation_segment_duration", d.RelaxationSegmentDuration)
	v.SetDefault("engine.default_whole_threshold", d.DefaultWholeThreshold)
	v.SetDefault("engine.frame_interval", d.FrameInterval)
	v.SetDefault("engine.dtw_radius", d.DTWRadius)
	v.SetDefault("engine.facing.x", d.Facing.X)
	v.SetDefault("engine.facing.y", d.Facing.Y)
	v.SetDefault("engine.facing.z", d.Facing.Z)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".yogatracker"
	}
	return filepath.Join(home, ".yogatracker")
}
