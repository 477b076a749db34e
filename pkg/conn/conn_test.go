package conn

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	testCases := []struct {
		desc string
		opt  Option
		want string
	}{
		{
			desc: "defaults",
			opt:  Option{},
			want: "postgres://localhost:5432?sslmode=disable",
		},
		{
			desc: "credentials and params",
			opt: Option{
				Host: "db", Port: 6543, User: "hw", Password: "secret", Database: "strat",
				Params: map[string]string{"application_name": "hwstrat"},
			},
			want: "postgres://hw:secret@db:6543/strat?application_name=hwstrat&sslmode=disable",
		},
		{
			desc: "schema and explicit ssl mode",
			opt:  Option{Host: "::1", Database: "strat", Schema: "hw", SSLMode: "require"},
			want: "postgres://[::1]:5432/strat?search_path=hw&sslmode=require",
		},
		{
			desc: "sslmode from params is kept",
			opt:  Option{Params: map[string]string{"sslmode": "verify-full"}},
			want: "postgres://localhost:5432?sslmode=verify-full",
		},
		{
			desc: "conn string wins",
			opt:  Option{Host: "ignored", ConnString: "postgres://x"},
			want: "postgres://x",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := tc.opt.postgresDSN()
			require.NoError(t, err)
			want, err := url.Parse(tc.want)
			require.NoError(t, err)
			parsed, err := url.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, want.String(), parsed.String())
		})
	}
}

func TestPostgresDSNRejectsPort(t *testing.T) {
	_, err := Option{Port: 70000}.postgresDSN()
	assert.Error(t, err)
}

func TestSQLiteOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.db")
	c, err := New(Option{Driver: DriverSQLite, Path: path})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DriverSQLite, c.Driver())
	require.NoError(t, c.DB().Exec("CREATE TABLE t (id INTEGER)").Error)
	assert.FileExists(t, path)

	sqlDB, err := c.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestNewRejects(t *testing.T) {
	_, err := New(Option{Driver: "mysql"})
	assert.Error(t, err)

	_, err = New(Option{Driver: DriverSQLite})
	assert.Error(t, err)

	var nilClient *Client
	assert.Nil(t, nilClient.DB())
	assert.NoError(t, nilClient.Close())
}
