package conn

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

const sqliteMemory = ":memory:"

func sqliteDialector(path string) gorm.Dialector {
	return sqlite.Open(path)
}

// sqlitePath resolves the database file and creates its directory.
func (opt Option) sqlitePath() (string, error) {
	path := opt.ConnString
	if path == "" {
		path = opt.Path
	}
	if path == "" {
		return "", errors.New("sqlite path is empty")
	}
	if path == sqliteMemory || strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrap(err, "create sqlite dir").With("dir", dir)
		}
	}
	return path, nil
}
