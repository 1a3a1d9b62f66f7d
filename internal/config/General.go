package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Config aggregates all configuration for one vault instance. It is built
// once at startup and handed to the components that need it; core logic never
// reads the environment directly.
type Config struct {
	// VaultName identifies this vault instance and prefixes its logs.
	VaultName string
	// SubaccountID is the exchange subaccount this instance trades for.
	SubaccountID int64

	Signing   Signing
	Chain     Chain
	Endpoints Endpoints
	Vault     VaultParams
}

// Load reads the full configuration from environment variables.
// All signing and chain variables are required; absence is fatal at startup.
func Load() (*Config, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	vaultName, err := getEnv("VAULT_NAME")
	if err != nil {
		return nil, err
	}

	subaccountID, err := getEnvAsInt64("SUBACCOUNT_ID")
	if err != nil {
		return nil, err
	}

	signing, err := loadSigning()
	if err != nil {
		return nil, err
	}

	chain, err := loadChain()
	if err != nil {
		return nil, err
	}

	endpoints, err := loadEndpoints()
	if err != nil {
		return nil, err
	}

	vault, err := loadVaultParams()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		VaultName:    vaultName,
		SubaccountID: subaccountID,
		Signing:      signing,
		Chain:        chain,
		Endpoints:    endpoints,
		Vault:        vault,
	}

	log.Debug().
		Str("VaultName", cfg.VaultName).
		Int64("SubaccountID", cfg.SubaccountID).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a fallback default.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt64Or retrieves an int64 environment variable with a fallback
// default; an unparsable value falls back too, with a warning.
func getEnvAsInt64Or(key string, fallback int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid int64 environment variable, using default")
		return fallback
	}
	return value
}

// getEnvAsFloat64Or retrieves a float64 environment variable with a fallback
// default; an unparsable value falls back too, with a warning.
func getEnvAsFloat64Or(key string, fallback float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid float64 environment variable, using default")
		return fallback
	}
	return value
}
