// Package personal dumps the personal data table through the redacting
// logger.
package personal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

type Config struct {
	User     string
	Password string
	Host     string
	Name     string
}

// ConfigFromEnv reads the PERSONAL_DATA_DB_* variables.
func ConfigFromEnv() (Config, error) {
	v := viper.New()
	v.SetDefault("user", "root")
	v.SetDefault("password", "")
	v.SetDefault("host", "localhost")
	v.SetDefault("name", "")

	v.AllowEmptyEnv(true)
	envVars := map[string]string{
		"user":     "PERSONAL_DATA_DB_USERNAME",
		"password": "PERSONAL_DATA_DB_PASSWORD",
		"host":     "PERSONAL_DATA_DB_HOST",
		"name":     "PERSONAL_DATA_DB_NAME",
	}
	for key, env := range envVars {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode personal data db config: %w", err)
	}
	return cfg, nil
}

func (c Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host
	if !strings.Contains(c.Host, ":") {
		mc.Addr = c.Host + ":3306"
	}
	mc.DBName = c.Name
	return mc.FormatDSN()
}

// Open connects to MySQL and checks the server answers.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open personal data db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping personal data db %s: %w", cfg.Host, err)
	}
	return db, nil
}

var columns = []string{"name", "email", "phone", "ssn", "password", "ip", "last_login", "user_agent"}

// LogUsers logs every row of the users table as a "field=value;" line.
func LogUsers(ctx context.Context, db *sql.DB, logger logr.Logger) (int, error) {
	logger = logger.WithName("user_data")

	rows, err := db.QueryContext(ctx, "SELECT "+strings.Join(columns, ", ")+" FROM users")
	if err != nil {
		return 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	n := 0
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return n, fmt.Errorf("scan user: %w", err)
		}
		logger.Info(formatRow(values))
		n++
	}
	return n, rows.Err()
}

func formatRow(values []sql.NullString) string {
	var b strings.Builder
	for i, column := range columns {
		b.WriteString(column)
		b.WriteByte('=')
		if values[i].Valid {
			b.WriteString(values[i].String)
		}
		b.WriteByte(';')
	}
	return b.String()
}
