package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/stockwear/internal/profile"
	"github.com/hrygo/stockwear/store"
	"github.com/hrygo/stockwear/store/db/postgres"
	"github.com/hrygo/stockwear/store/db/sqlite"
)

// PostgreSQL (with pgvector) is the production driver.
// SQLite keeps vectors as JSON text and serves demo and development setups.

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
