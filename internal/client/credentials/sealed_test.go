package credentials

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealedStore_DoesNotStorePlaintext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s := NewSealedStore(inner, "pw")

	require.NoError(t, s.Set(ctx, KindAccess, "secret-access"))

	raw, ok, err := inner.Get(ctx, KindAccess)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, raw, "secret-access")

	_, ok, err = inner.Get(ctx, kindSalt)
	require.NoError(t, err)
	require.True(t, ok, "salt must be persisted next to the values")
}

func TestSealedStore_WrongPassphraseReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	require.NoError(t, NewSealedStore(inner, "right").Set(ctx, KindRefresh, "R"))

	_, ok, err := NewSealedStore(inner, "wrong").Get(ctx, KindRefresh)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSealedStore_PlaintextRowReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s := NewSealedStore(inner, "pw")

	require.NoError(t, s.Set(ctx, KindRefresh, "R"))
	require.NoError(t, inner.Set(ctx, KindAccess, "not-sealed"))

	_, ok, err := s.Get(ctx, KindAccess)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSealedStore_NoSaltMeansNothingSealed(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Set(ctx, KindAccess, "legacy"))

	_, ok, err := NewSealedStore(inner, "pw").Get(ctx, KindAccess)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSealedStore_OverSQLiteAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "creds.db")

	db, err := OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, NewSealedStore(db, "pw").Set(ctx, KindAccess, "A"))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := NewSealedStore(db, "pw").Get(ctx, KindAccess)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "A", v)
}

func TestSealedStore_ClearAllResetsKey(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s := NewSealedStore(inner, "pw")

	require.NoError(t, s.Set(ctx, KindAccess, "A"))
	saltBefore, _, _ := inner.Get(ctx, kindSalt)

	require.NoError(t, s.ClearAll(ctx))
	require.NoError(t, s.Set(ctx, KindAccess, "B"))
	saltAfter, _, _ := inner.Get(ctx, kindSalt)

	require.NotEqual(t, saltBefore, saltAfter)
	v, ok, err := s.Get(ctx, KindAccess)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "B", v)
}
