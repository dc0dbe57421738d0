package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultSQLitePath is used when the sqlite driver has no database_url.
const DefaultSQLitePath = "dining.db"

// Open connects to the configured store and migrates it. An empty driver
// returns a nil Store and no error.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "":
		return nil, nil
	case "sqlite":
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	zap.L().Debug("store: opened", zap.String("driver", driver))
	return st, nil
}
