package app

import (
	"strings"

	"github.com/feelize/platform/internal/database"
)

// ConnectionConfig converts DatabaseConfig into database.Open parameters, picking the host
// section that matches the driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogQueries:      c.LogQueries,
	}

	var host DBAuthConfig
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}
