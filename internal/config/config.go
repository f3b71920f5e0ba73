// Package config loads the shop server configuration. Values are layered:
// built-in defaults, then an optional JSON file, then environment variables
// (including a .env file), then command-line flags.
package config

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	RunAddr               string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LogLevel              string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DatabaseDSN           string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout   time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout" validate:"gt=0"`
	TokenSigningSecretKey string        `env:"TOKEN_SIGNING_SECRET_KEY" json:"token_signing_secret_key" validate:"required,base64url"`
	TokenTTL              time.Duration `env:"TOKEN_TTL" json:"token_ttl" validate:"gt=0"`
	CartRoutesRequireAuth bool          `env:"CART_ROUTES_REQUIRE_AUTH" json:"cart_routes_require_auth"`
	CORSAllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," json:"cors_allowed_origins" validate:"min=1"`
	TrustedSubnet         string        `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`
	TrustProxyHeaders     bool          `env:"TRUST_PROXY_HEADERS" json:"trust_proxy_headers"`
	ConfigFile            string        `env:"CONFIG" json:"-"`
}

var defaultConfig = Config{
	RunAddr:             ":5000",
	LogLevel:            "info",
	DatabaseDSN:         "",
	DBConnectionTimeout: 10 * time.Second,
	TokenTTL:            time.Hour,
	CORSAllowedOrigins:  []string{"*"},
}

// SigningKey decodes TokenSigningSecretKey.
func (c *Config) SigningKey() ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(c.TokenSigningSecretKey)
	if err != nil {
		return nil, fmt.Errorf(
			"in internal/config/config.go/SigningKey(): error while `base64.URLEncoding.DecodeString()` calling: %w",
			err,
		)
	}
	return key, nil
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the configuration. Priority: flags > env > JSON file > defaults.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}

	var flagValues *Config
	var flagsSet map[string]bool
	if !options.disableFlagsParsing {
		var err error
		flagValues, flagsSet, err = parseFlags(os.Args[1:])
		if err != nil {
			return nil, err
		}
	}

	configFile := valuesFromEnv.ConfigFile
	if flagsSet["c"] {
		configFile = flagValues.ConfigFile
	}
	if configFile != "" {
		if err := values.loadJSON(configFile); err != nil {
			return nil, err
		}
	}

	applyDefaults(values, valuesFromEnv)

	if flagsSet != nil {
		values.applyFlags(flagValues, flagsSet)
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

// applyDefaults copies every non-zero field of source into values.
func applyDefaults(values *Config, source Config) {
	if source.RunAddr != "" {
		values.RunAddr = source.RunAddr
	}
	if source.LogLevel != "" {
		values.LogLevel = source.LogLevel
	}
	if source.DatabaseDSN != "" {
		values.DatabaseDSN = source.DatabaseDSN
	}
	if source.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = source.DBConnectionTimeout
	}
	if source.TokenSigningSecretKey != "" {
		values.TokenSigningSecretKey = source.TokenSigningSecretKey
	}
	if source.TokenTTL != 0 {
		values.TokenTTL = source.TokenTTL
	}
	if source.CartRoutesRequireAuth {
		values.CartRoutesRequireAuth = true
	}
	if len(source.CORSAllowedOrigins) > 0 {
		values.CORSAllowedOrigins = source.CORSAllowedOrigins
	}
	if source.TrustedSubnet != "" {
		values.TrustedSubnet = source.TrustedSubnet
	}
	if source.TrustProxyHeaders {
		values.TrustProxyHeaders = true
	}
	if source.ConfigFile != "" {
		values.ConfigFile = source.ConfigFile
	}
}

type jsonConfig struct {
	Config
	DBConnectionTimeout string `json:"db_connection_timeout"`
	TokenTTL            string `json:"token_ttl"`
}

func (c *Config) loadJSON(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	var fromFile jsonConfig
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	if fromFile.DBConnectionTimeout != "" {
		fromFile.Config.DBConnectionTimeout, err = time.ParseDuration(fromFile.DBConnectionTimeout)
		if err != nil {
			return fmt.Errorf("in internal/config/config.go/loadJSON(): invalid db_connection_timeout: %w", err)
		}
	}
	if fromFile.TokenTTL != "" {
		fromFile.Config.TokenTTL, err = time.ParseDuration(fromFile.TokenTTL)
		if err != nil {
			return fmt.Errorf("in internal/config/config.go/loadJSON(): invalid token_ttl: %w", err)
		}
	}

	applyDefaults(c, fromFile.Config)

	return nil
}

func parseFlags(arguments []string) (*Config, map[string]bool, error) {
	flagValues := &Config{}
	flagSet := flag.NewFlagSet("shop", flag.ContinueOnError)

	flagSet.StringVar(&flagValues.RunAddr, "a", "", "address and port to run server")
	flagSet.StringVar(&flagValues.LogLevel, "l", "", "logger level")
	flagSet.StringVar(&flagValues.DatabaseDSN, "d", "", "a string with the database connection details")
	flagSet.StringVar(&flagValues.TrustedSubnet, "t", "", "trusted subnet (CIDR) allowed to read /metrics")
	flagSet.BoolVar(&flagValues.CartRoutesRequireAuth, "cart-auth", false, "require a bearer token on /cart/{userID} routes")
	flagSet.StringVar(&flagValues.ConfigFile, "c", "", "JSON configuration file")

	if err := flagSet.Parse(arguments); err != nil {
		return nil, nil, err
	}

	flagsSet := map[string]bool{}
	flagSet.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	return flagValues, flagsSet, nil
}

func (c *Config) applyFlags(flagValues *Config, flagsSet map[string]bool) {
	if flagsSet["a"] {
		c.RunAddr = flagValues.RunAddr
	}
	if flagsSet["l"] {
		c.LogLevel = flagValues.LogLevel
	}
	if flagsSet["d"] {
		c.DatabaseDSN = flagValues.DatabaseDSN
	}
	if flagsSet["t"] {
		c.TrustedSubnet = flagValues.TrustedSubnet
	}
	if flagsSet["cart-auth"] {
		c.CartRoutesRequireAuth = flagValues.CartRoutesRequireAuth
	}
	if flagsSet["c"] {
		c.ConfigFile = flagValues.ConfigFile
	}
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}
