// Package settings persists operator-managed key/value settings, such as a
// provider credential that overrides the environment.
package settings

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Store reads and writes settings by key.
type Store interface {
	// Get returns the value for key. ok is false when the key is unset.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Migrate(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open returns the store for driver. The none driver yields a nil Store
// and no error.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("settings: unknown driver %q", driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return eris.New("settings: key is required")
	}
	return nil
}
