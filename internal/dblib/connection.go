package dblib

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ConnectionConfig is the fixed configuration the gateway connects with.
type ConnectionConfig struct {
	// Driver is a database/sql driver name: postgres, pgx, mysql or sqlite3.
	Driver   string
	Database string
	Host     string
	Port     string
	Username string
	Password string
	SSLMode  string
	// URL, when set, is passed to the driver verbatim and overrides the
	// individual fields above.
	URL string
}

// DatabaseType returns the engine family of the configured driver.
func (c ConnectionConfig) DatabaseType() (DatabaseType, error) {
	if c.Driver == "" {
		if strings.HasSuffix(c.Database, ".sqlite") || strings.HasSuffix(c.Database, ".db") {
			return SQLite, nil
		}
		return PostgreSQL, nil
	}
	return ParseDatabaseType(c.Driver)
}

// DriverName returns the database/sql driver to open.
func (c ConnectionConfig) DriverName() (string, error) {
	dbType, err := c.DatabaseType()
	if err != nil {
		return "", err
	}
	drivers := databaseFeatures[dbType].drivers
	for _, d := range drivers {
		if d == c.Driver {
			return d, nil
		}
	}
	return drivers[0], nil
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

// quoteConnValue quotes a keyword/value connection string value when needed.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// DSN builds the driver-specific connection string.
func (c ConnectionConfig) DSN() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	dbType, err := c.DatabaseType()
	if err != nil {
		return "", err
	}

	switch dbType {
	case SQLite:
		if c.Database == "" {
			return "", fmt.Errorf("sqlite database file not set")
		}
		if c.Database != ":memory:" {
			if _, err := os.Stat(c.Database); os.IsNotExist(err) {
				return "", fmt.Errorf("sqlite file does not exist: %s", c.Database)
			}
		}
		return c.Database + "?_foreign_keys=on", nil

	case PostgreSQL:
		parts := []string{"dbname=" + quoteConnValue(c.Database)}
		if c.Host != "" {
			parts = append(parts, "host="+quoteConnValue(c.Host))
		}
		if c.Port != "" {
			parts = append(parts, "port="+quoteConnValue(c.Port))
		}
		username := c.Username
		if username == "" {
			username = currentUsername()
		}
		if username != "" {
			parts = append(parts, "user="+quoteConnValue(username))
		}
		if c.Password != "" {
			parts = append(parts, "password="+quoteConnValue(c.Password))
		}
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		parts = append(parts, "sslmode="+sslmode)
		return strings.Join(parts, " "), nil

	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.Username
		if cfg.User == "" {
			cfg.User = currentUsername()
		}
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		host := c.Host
		if host == "" {
			host = "localhost"
		}
		port := c.Port
		if port == "" {
			port = "3306"
		}
		cfg.Addr = host + ":" + port
		cfg.DBName = c.Database
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil

	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// Redacted describes the target without credentials, for logs and errors.
func (c ConnectionConfig) Redacted() string {
	if c.URL != "" {
		return c.Driver + " url"
	}
	if c.Host == "" {
		return fmt.Sprintf("%s:%s", c.Driver, c.Database)
	}
	return fmt.Sprintf("%s://%s@%s:%s/%s", c.Driver, c.Username, c.Host, c.Port, c.Database)
}
