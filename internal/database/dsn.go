package database

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sectorfolio/sectorfolio/internal/config"
)

// BuildURL returns a lib/pq connection string. DATABASE_URL wins; otherwise a
// key/value DSN is assembled from the discrete DB_* settings.
func BuildURL(cfg config.DatabaseConfig) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("neither DATABASE_URL nor DB_USER/DB_NAME is set")
	}

	parts := []string{
		"host=" + quoteDSN(cfg.Host),
		"port=" + quoteDSN(cfg.Port),
		"user=" + quoteDSN(cfg.User),
		"dbname=" + quoteDSN(cfg.Name),
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+quoteDSN(cfg.Password))
	}
	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteDSN(cfg.SSLMode))
	}

	return strings.Join(parts, " "), nil
}

// RedactURL hides the password of a URL- or key/value-style DSN for logging.
func RedactURL(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "postgres://***"
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
		return u.String()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}

func quoteDSN(v string) string {
	if v == "" || strings.ContainsAny(v, " '\\") {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		return "'" + v + "'"
	}
	return v
}
