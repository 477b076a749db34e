package conn

import (
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Option defines connection options. Driver defaults to postgres.
type Option struct {
	Driver string

	// Postgres
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Schema   string
	Params   map[string]string

	// SQLite database file; ":memory:" keeps the database in memory.
	Path string

	// ConnString overrides every other addressing field.
	ConnString string
	Config     *gorm.Config

	// Pool limits. Zero leaves the database/sql default, except that SQLite
	// is capped at one open connection.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Client wraps a gorm connection pool.
type Client struct {
	opt Option
	db  *gorm.DB
}

// New opens a connection with the driver named by the option.
func New(option Option) (*Client, error) {
	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	var dialector gorm.Dialector
	switch option.Driver {
	case "", DriverPostgres:
		option.Driver = DriverPostgres
		dsn, err := option.postgresDSN()
		if err != nil {
			return nil, err
		}
		dialector = postgresDialector(dsn)
	case DriverSQLite:
		path, err := option.sqlitePath()
		if err != nil {
			return nil, err
		}
		dialector = sqliteDialector(path)
	default:
		return nil, errors.Errorf("unsupported driver %q", option.Driver)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, errors.Wrap(err, "open database").With("driver", option.Driver)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "database handle").With("driver", option.Driver)
	}
	maxOpen := option.MaxOpenConns
	if option.Driver == DriverSQLite && maxOpen == 0 {
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if option.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(option.MaxIdleConns)
	}
	if option.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(option.ConnMaxLifetime)
	}
	return &Client{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Driver returns the resolved driver name.
func (c *Client) Driver() string {
	if c == nil {
		return ""
	}
	return c.opt.Driver
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
