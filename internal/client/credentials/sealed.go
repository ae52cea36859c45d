package credentials

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/insightlens/internal/cryptox"
)

// kindSalt holds the key-derivation salt next to the sealed values.
const kindSalt Kind = "credential_salt"

// SealedStore encrypts credential values before handing them to the wrapped
// Store. A value that cannot be opened (different passphrase, corrupted
// row) is reported as absent.
type SealedStore struct {
	inner      Store
	passphrase []byte

	mu  sync.Mutex
	key []byte
}

func NewSealedStore(inner Store, passphrase string) *SealedStore {
	return &SealedStore{inner: inner, passphrase: []byte(passphrase)}
}

// loadKey derives the key once per salt. With create=false a missing salt
// yields a nil key: nothing sealed can exist without one.
func (s *SealedStore) loadKey(ctx context.Context, create bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}

	encoded, ok, err := s.inner.Get(ctx, kindSalt)
	if err != nil {
		return nil, err
	}

	var salt []byte
	if ok {
		salt, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode credential salt: %w", err)
		}
	} else {
		if !create {
			return nil, nil
		}
		salt, err = cryptox.NewSalt()
		if err != nil {
			return nil, err
		}
		if err := s.inner.Set(ctx, kindSalt, base64.StdEncoding.EncodeToString(salt)); err != nil {
			return nil, err
		}
	}

	s.key = cryptox.DeriveKey(s.passphrase, salt)
	return s.key, nil
}

func (s *SealedStore) Get(ctx context.Context, kind Kind) (string, bool, error) {
	encoded, ok, err := s.inner.Get(ctx, kind)
	if err != nil || !ok {
		return "", false, err
	}

	key, err := s.loadKey(ctx, false)
	if err != nil {
		return "", false, err
	}
	if key == nil {
		return "", false, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false, nil
	}
	plain, err := cryptox.Open(sealed, key)
	if err != nil {
		return "", false, nil
	}
	return string(plain), true, nil
}

func (s *SealedStore) Set(ctx context.Context, kind Kind, value string) error {
	sealed, err := s.seal(ctx, kind, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, kind, sealed)
}

// SetPair seals both tokens and hands them to the wrapped store in one
// call, keeping its atomicity.
func (s *SealedStore) SetPair(ctx context.Context, access, refresh string) error {
	sealedAccess, err := s.seal(ctx, KindAccess, access)
	if err != nil {
		return err
	}

	sealedRefresh := ""
	if refresh != "" {
		if sealedRefresh, err = s.seal(ctx, KindRefresh, refresh); err != nil {
			return err
		}
	}
	return SetPair(ctx, s.inner, sealedAccess, sealedRefresh)
}

func (s *SealedStore) seal(ctx context.Context, kind Kind, value string) (string, error) {
	key, err := s.loadKey(ctx, true)
	if err != nil {
		return "", err
	}

	sealed, err := cryptox.Seal([]byte(value), key)
	if err != nil {
		return "", fmt.Errorf("failed to seal credential[%s]: %w", kind, err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *SealedStore) Clear(ctx context.Context, kind Kind) error {
	return s.inner.Clear(ctx, kind)
}

// ClearAll also drops the salt, so the next Set starts a fresh key.
func (s *SealedStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.inner.ClearAll(ctx); err != nil {
		return err
	}
	s.key = nil
	return nil
}
