// Package config loads go-mimic settings from an optional JSON file and
// MIMIC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-mimic/pkg/env"
	"github.com/teslashibe/go-mimic/pkg/reward"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// FileName is the config file looked up in the config directory.
const FileName = "mimic.json"

// Default settings.
const (
	DefaultClipPath   = "data/motions/humanoid3d_walk.txt"
	DefaultServerPort = "8080"
)

// JointOverride adjusts one humanoid joint.
type JointOverride struct {
	MaxForce float64  `json:"maxForce" mapstructure:"maxForce"`
	Gain     float64  `json:"gain" mapstructure:"gain"`
	Weight   *float64 `json:"weight" mapstructure:"weight"`
}

// ServerConfig holds the reference-pose server settings.
type ServerConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Port    string `json:"port" mapstructure:"port"`
}

// RewardConfig holds the imitation reward settings.
type RewardConfig struct {
	Weights reward.Weights `json:"weights" mapstructure:"weights"`
	Scales  reward.Scales  `json:"scales" mapstructure:"scales"`
}

// Config is the full runtime configuration.
type Config struct {
	// ClipPath is the "clip" key, overridden by MIMIC_CLIP.
	ClipPath string `json:"clip" mapstructure:"clip"`
	LogLevel string `json:"logLevel" mapstructure:"logLevel"`

	Timestep float64 `json:"timestep" mapstructure:"timestep"`
	Substeps int     `json:"substeps" mapstructure:"substeps"`
	MaxSteps int     `json:"maxSteps" mapstructure:"maxSteps"`
	Episodes int     `json:"episodes" mapstructure:"episodes"`

	BaseShift       []float64                `json:"baseShift" mapstructure:"baseShift"`
	AllowedContacts []int                    `json:"allowedContacts" mapstructure:"allowedContacts"`
	Joints          map[string]JointOverride `json:"joints" mapstructure:"joints"`

	Reward RewardConfig `json:"reward" mapstructure:"reward"`
	Server ServerConfig `json:"server" mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	envDefaults := env.DefaultConfig()
	weights := reward.DefaultWeights()
	scales := reward.DefaultScales()

	v.SetDefault("clip", DefaultClipPath)
	v.SetDefault("logLevel", "info")

	v.SetDefault("timestep", envDefaults.Timestep)
	v.SetDefault("substeps", envDefaults.Substeps)
	v.SetDefault("maxSteps", envDefaults.MaxSteps)
	v.SetDefault("episodes", 1)

	v.SetDefault("baseShift", []float64{0, 0, 0})
	v.SetDefault("allowedContacts", skeleton.HumanoidAllowedContacts)

	v.SetDefault("reward.weights.pose", weights.Pose)
	v.SetDefault("reward.weights.velocity", weights.Velocity)
	v.SetDefault("reward.weights.end_effector", weights.EndEffector)
	v.SetDefault("reward.weights.root", weights.Root)
	v.SetDefault("reward.weights.com", weights.COM)

	v.SetDefault("reward.scales.pose", scales.Pose)
	v.SetDefault("reward.scales.velocity", scales.Velocity)
	v.SetDefault("reward.scales.end_effector", scales.EndEffector)
	v.SetDefault("reward.scales.root", scales.Root)
	v.SetDefault("reward.scales.com", scales.COM)
	v.SetDefault("reward.scales.error", scales.Error)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", DefaultServerPort)
}

// Load reads FileName from configDir if it exists, applies MIMIC_*
// environment overrides (MIMIC_CLIP sets clip, MIMIC_SERVER_PORT sets
// server.port) and validates
// the result. A missing file is not an error.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MIMIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configDir != "" {
		v.SetConfigFile(configDir + string(os.PathSeparator) + FileName)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.ClipPath == "" {
		return fmt.Errorf("config: clip is required")
	}
	if !(c.Timestep > 0) {
		return fmt.Errorf("config: timestep must be positive, got %v", c.Timestep)
	}
	if c.Substeps < 1 {
		return fmt.Errorf("config: substeps must be at least 1, got %d", c.Substeps)
	}
	if c.MaxSteps < 0 || c.Episodes < 0 {
		return fmt.Errorf("config: maxSteps and episodes must not be negative")
	}
	if len(c.BaseShift) != 3 {
		return fmt.Errorf("config: baseShift needs 3 values, got %d", len(c.BaseShift))
	}
	if _, err := c.Reward.Weights.Normalized(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// BaseShiftVec returns BaseShift as a vector.
func (c *Config) BaseShiftVec() mgl64.Vec3 {
	return mgl64.Vec3{c.BaseShift[0], c.BaseShift[1], c.BaseShift[2]}
}

// JointSet returns the reference humanoid with the configured overrides.
// An override naming an unknown joint fails with skeleton.UnknownJointError.
func (c *Config) JointSet() (*skeleton.JointSet, error) {
	overrides := make(map[string]skeleton.Override, len(c.Joints))
	for name, o := range c.Joints {
		overrides[name] = skeleton.Override{MaxForce: o.MaxForce, Gain: o.Gain, Weight: o.Weight}
	}
	return skeleton.Humanoid().With(overrides)
}

// RewardConfig returns the reward configuration for the reference humanoid.
func (c *Config) RewardConfig() reward.Config {
	cfg := reward.DefaultConfig()
	cfg.Weights = c.Reward.Weights
	cfg.Scales = c.Reward.Scales
	return cfg
}

// EnvConfig returns the episode timing configuration.
func (c *Config) EnvConfig() env.Config {
	return env.Config{Timestep: c.Timestep, Substeps: c.Substeps, MaxSteps: c.MaxSteps}
}
