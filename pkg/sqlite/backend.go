// Package sqlite is the public entry point to the SQLite store. It hides
// the attach sequence behind Open so callers get a ready backend.
package sqlite

import (
	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Open attaches a SQLite backend on config.DataDir. The caller must Detach
// it.
//
// Example:
//
//	backend, err := sqlite.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".veilmarket/data",
//	})
//	if err != nil {
//	    return err
//	}
//	defer backend.Detach()
func Open(config types.Config) (*sqlite.Backend, error) {
	b := sqlite.NewBackend()
	if err := b.Attach(config); err != nil {
		return nil, err
	}
	return b, nil
}
