package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool. Telemetry only: nothing in the
// execution path ever reads it back, so the vault recovers after a restart
// from exchange positions alone even with an empty database.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// LoadDBConfigFromEnv reads the optional telemetry database settings. The
// second return is false when DB_HOST is unset, meaning telemetry is
// disabled for this run.
func LoadDBConfigFromEnv() (DBConfig, bool) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return DBConfig{}, false
	}
	port := 5432
	if p := os.Getenv("DB_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	return DBConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  sslMode,
	}, true
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS stage_transitions (
			transition_id SERIAL PRIMARY KEY,
			transition_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			vault_name VARCHAR(255) NOT NULL,
			stage VARCHAR(50) NOT NULL,
			instrument_name VARCHAR(255)
		);
		CREATE INDEX IF NOT EXISTS idx_stage_transitions_vault_timestamp
			ON stage_transitions(vault_name, transition_timestamp DESC);

		CREATE TABLE IF NOT EXISTS order_submissions (
			submission_id SERIAL PRIMARY KEY,
			submission_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			vault_name VARCHAR(255) NOT NULL,
			order_id VARCHAR(255) NOT NULL,
			instrument_name VARCHAR(255) NOT NULL,
			label VARCHAR(255),
			direction VARCHAR(10) NOT NULL,
			limit_price DECIMAL(30, 18) NOT NULL,
			amount DECIMAL(30, 18) NOT NULL,
			max_fee DECIMAL(30, 18) NOT NULL,
			nonce BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_order_submissions_vault_timestamp
			ON order_submissions(vault_name, submission_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_order_submissions_label
			ON order_submissions(label);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
