package store

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lvillar/signdoc"
)

// KeySize is the length of a sealing key.
const KeySize = chacha20poly1305.KeySize

// Sealed is a Store that encrypts the artifact and signature image of every
// record with XChaCha20-Poly1305 before handing it to the wrapped store.
// The record id is bound as additional data, so a sealed blob cannot be
// moved to another record.
type Sealed struct {
	Store
	aead cipher.AEAD
}

// NewSealed wraps inner. key must be KeySize bytes.
func NewSealed(inner Store, key []byte) (*Sealed, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("store: sealing key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Sealed{Store: inner, aead: aead}, nil
}

func (s *Sealed) seal(id string, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(id)), nil
}

func (s *Sealed) open(id string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("ciphertext too short")
	}
	return s.aead.Open(nil, data[:n], data[n:], []byte(id))
}

func (s *Sealed) Append(ctx context.Context, r Record) (Record, error) {
	r = prepare(r)
	plain := r

	var err error
	if r.Artifact, err = s.seal(r.ID, r.Artifact); err != nil {
		return Record{}, fmt.Errorf("store: sealing %s: %w: %w", r.ID, signdoc.ErrStore, err)
	}
	if r.SignatureImage, err = s.seal(r.ID, r.SignatureImage); err != nil {
		return Record{}, fmt.Errorf("store: sealing %s: %w: %w", r.ID, signdoc.ErrStore, err)
	}
	if _, err := s.Store.Append(ctx, r); err != nil {
		return Record{}, err
	}
	return plain, nil
}

func (s *Sealed) unseal(r Record) (Record, error) {
	var err error
	if r.Artifact, err = s.open(r.ID, r.Artifact); err != nil {
		return Record{}, fmt.Errorf("store: opening %s: %w: %w", r.ID, signdoc.ErrStore, err)
	}
	if r.SignatureImage, err = s.open(r.ID, r.SignatureImage); err != nil {
		return Record{}, fmt.Errorf("store: opening %s: %w: %w", r.ID, signdoc.ErrStore, err)
	}
	return r, nil
}

func (s *Sealed) unsealAll(rs []Record, err error) ([]Record, error) {
	if err != nil {
		return nil, err
	}
	for i := range rs {
		if rs[i], err = s.unseal(rs[i]); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

func (s *Sealed) All(ctx context.Context) ([]Record, error) {
	return s.unsealAll(s.Store.All(ctx))
}

func (s *Sealed) Get(ctx context.Context, id string) (Record, error) {
	r, err := s.Store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return s.unseal(r)
}

func (s *Sealed) ByEmail(ctx context.Context, email string) ([]Record, error) {
	return s.unsealAll(s.Store.ByEmail(ctx, email))
}
