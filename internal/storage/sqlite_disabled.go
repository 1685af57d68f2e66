//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	logx "penpal/pkg/logx"
)

// Without the sqlite build tag the driver is compiled out, keeping the
// default binary free of the modernc dependency tree.
func openSQLite(Config, logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage not built: rebuild with -tags sqlite")
}
