package credentials

import "context"

// Kind names a credential slot.
type Kind string

const (
	KindAccess  Kind = "access_token"
	KindRefresh Kind = "refresh_token"
)

// Store is the persistence contract for credentials. Get reports ok=false
// for an absent slot; absence is not an error.
type Store interface {
	Get(ctx context.Context, kind Kind) (string, bool, error)
	Set(ctx context.Context, kind Kind, value string) error
	Clear(ctx context.Context, kind Kind) error
	ClearAll(ctx context.Context) error
}

// PairStore is implemented by stores that can replace both tokens
// atomically.
type PairStore interface {
	SetPair(ctx context.Context, access, refresh string) error
}

// SetPair stores a fresh credential pair. An empty refresh removes the
// stored refresh token. Stores without atomic replacement are written slot
// by slot and cleared entirely when the second write fails, so a partial
// pair is never left behind.
func SetPair(ctx context.Context, s Store, access, refresh string) error {
	if ps, ok := s.(PairStore); ok {
		return ps.SetPair(ctx, access, refresh)
	}

	if err := s.Set(ctx, KindAccess, access); err != nil {
		return err
	}

	var err error
	if refresh != "" {
		err = s.Set(ctx, KindRefresh, refresh)
	} else {
		err = s.Clear(ctx, KindRefresh)
	}
	if err != nil {
		_ = s.ClearAll(ctx)
		return err
	}
	return nil
}
