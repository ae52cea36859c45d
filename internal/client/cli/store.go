package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/insightlens/internal/client/config"
	"github.com/dmitrijs2005/insightlens/internal/client/credentials"
	"github.com/dmitrijs2005/insightlens/internal/filex"
)

// MemoryStorePath selects the in-process credential store.
const MemoryStorePath = "memory"

// openStore returns the credential store selected by cfg and a function that
// releases it.
func openStore(ctx context.Context, cfg *config.Config) (credentials.Store, func() error, error) {
	var (
		store   credentials.Store
		closeFn = func() error { return nil }
	)

	if cfg.StorePath == MemoryStorePath || cfg.StorePath == "" {
		store = credentials.NewMemoryStore()
	} else {
		if err := filex.EnsureParentDir(cfg.StorePath); err != nil {
			return nil, nil, fmt.Errorf("error preparing credential store: %w", err)
		}
		s, err := credentials.OpenSQLite(ctx, cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing credential store: %w", err)
		}
		store, closeFn = s, s.Close
	}

	if cfg.StoreSecret != "" {
		store = credentials.NewSealedStore(store, cfg.StoreSecret)
	}
	return store, closeFn, nil
}
