package conn

import (
	"net"
	"net/url"
	"strconv"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

func postgresDialector(dsn string) gorm.Dialector {
	return postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	})
}

// postgresDSN builds a postgres:// URL. Schema becomes the search_path and
// Params are appended as query values.
func (opt Option) postgresDSN() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	if port < 0 || port > 65535 {
		return "", errors.Errorf("invalid postgres port %d", port)
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	switch {
	case opt.User != "" && opt.Password != "":
		u.User = url.UserPassword(opt.User, opt.Password)
	case opt.User != "":
		u.User = url.User(opt.User)
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	for key, value := range opt.Params {
		if key != "" {
			query.Set(key, value)
		}
	}
	if opt.SSLMode != "" || query.Get("sslmode") == "" {
		query.Set("sslmode", orDefault(opt.SSLMode, defaultPostgresSSLMode))
	}
	if opt.Schema != "" {
		query.Set("search_path", opt.Schema)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
