package cmd

import (
	"fmt"

	"vigil/internal/config"
	"vigil/internal/progress"
)

// openStore opens the configured progress store. The returned func releases it.
func openStore() (*progress.Store, func(), error) {
	opts := []progress.Option{progress.WithTTL(cfg.ProgressTTL.Duration)}

	switch cfg.Store {
	case "memory":
		return progress.New(progress.NewMemory(), opts...), func() {}, nil
	case "sqlite":
		path, err := config.DataPath("progress.db")
		if err != nil {
			return nil, nil, err
		}
		db, err := progress.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening progress store: %w", err)
		}
		debugf("progress store: %s", path)
		return progress.New(db, opts...), func() { db.Close() }, nil
	default:
		path, err := config.DataPath("progress.json")
		if err != nil {
			return nil, nil, err
		}
		debugf("progress store: %s", path)
		return progress.New(progress.NewFile(path), opts...), func() {}, nil
	}
}
