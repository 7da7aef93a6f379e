package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Precision  PrecisionConfig  `yaml:"precision"`
	Estimation EstimationConfig `yaml:"estimation"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PrecisionConfig holds the decimal arithmetic settings
type PrecisionConfig struct {
	Digits   uint32 `yaml:"digits" validate:"gte=1,lte=10000"`
	Rounding string `yaml:"rounding" validate:"oneof=down half_up half_even ceiling floor half_down up 05up"`
}

// EstimationConfig holds defaults for evidence estimation
type EstimationConfig struct {
	BurnIn int  `yaml:"burn_in" validate:"gte=0"`
	Log    bool `yaml:"log"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `yaml:"port" validate:"required"`
	GinMode string `yaml:"gin_mode" validate:"oneof=debug release test"`
}

// DatabaseConfig holds result store settings; an empty DSN disables persistence
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite3"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig holds log verbosity
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=ERROR WARN INFO DEBUG TRACE"`
}

// ArithmeticPrecision converts the arithmetic settings to the domain type
func (c *Config) ArithmeticPrecision() evidence.Precision {
	return evidence.Precision{Digits: c.Precision.Digits, Rounding: c.Precision.Rounding}
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Precision: PrecisionConfig{
			Digits:   evidence.DefaultDigits,
			Rounding: evidence.DefaultRounding,
		},
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "release",
		},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load reads .env, the optional YAML file named by EVIDENCE_CONFIG and the
// environment, in increasing order of priority, and validates the result
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	return LoadFile(os.Getenv("EVIDENCE_CONFIG"))
}

// LoadDotEnv copies a .env file in the working directory into the
// environment. A missing file is not an error; variables already set win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(errors.WithCode(errors.CodeConfigInvalid, err), "failed to read .env file")
	}
	return nil
}

// LoadFile layers an optional YAML file and the environment over the defaults
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "failed to parse config file %s", path)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Precision.Digits = uint32(getEnvIntOrDefault("EVIDENCE_PRECISION", int(cfg.Precision.Digits)))
	cfg.Precision.Rounding = getEnvOrDefault("EVIDENCE_ROUNDING", cfg.Precision.Rounding)
	cfg.Estimation.BurnIn = getEnvIntOrDefault("EVIDENCE_BURN_IN", cfg.Estimation.BurnIn)
	cfg.Estimation.Log = getEnvBoolOrDefault("EVIDENCE_LOG", cfg.Estimation.Log)
	cfg.Server.Port = getEnvOrDefault("PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnvOrDefault("GIN_MODE", cfg.Server.GinMode)
	cfg.Database.Driver = getEnvOrDefault("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnvOrDefault("DATABASE_URL", cfg.Database.DSN)
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
}

var validate = validator.New()

// Validate checks struct constraints and that the precision can build a decimal context
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if err := cfg.ArithmeticPrecision().Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
