package database

import "strings"

const (
	// BackendPostgres selects the PostgreSQL storage backend.
	BackendPostgres = "postgres"
	// BackendSQLite selects the embedded SQLite storage backend.
	BackendSQLite = "sqlite"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Backend        string `yaml:"backend" envconfig:"DB_BACKEND"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// ResolveBackend returns the normalized backend name, defaulting to postgres.
func (c Config) ResolveBackend() string {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case BackendSQLite, "sqlite3":
		return BackendSQLite
	default:
		return BackendPostgres
	}
}
