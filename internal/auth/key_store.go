// Package auth guards writes to the registry with operator API keys.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// KeyPrefix starts every plaintext API key.
const KeyPrefix = "nk_"

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("api key not found")

// KeyRecord represents a row in the api_keys table.
type KeyRecord struct {
	ID         string       `db:"id" json:"id"`
	Name       string       `db:"name" json:"name"`
	KeyHash    string       `db:"key_hash" json:"-"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	LastUsedAt sql.NullTime `db:"last_used_at" json:"-"`
	ExpiresAt  sql.NullTime `db:"expires_at" json:"-"`
	RevokedAt  sql.NullTime `db:"revoked_at" json:"-"`
}

// Active reports whether the key is neither revoked nor expired at now.
func (k *KeyRecord) Active(now time.Time) bool {
	if k.RevokedAt.Valid {
		return false
	}
	return !k.ExpiresAt.Valid || k.ExpiresAt.Time.After(now)
}

// KeyStore defines operations for API key management.
type KeyStore interface {
	Create(ctx context.Context, name, keyHash string, expiresAt *time.Time) (*KeyRecord, error)
	GetByHash(ctx context.Context, hash string) (*KeyRecord, error)
	List(ctx context.Context) ([]*KeyRecord, error)
	Revoke(ctx context.Context, id string) error
	UpdateLastUsed(ctx context.Context, id string) error
}

// SQLKeyStore is the sqlx-backed implementation of KeyStore.
type SQLKeyStore struct {
	db *sqlx.DB
}

// NewSQLKeyStore creates a new SQLKeyStore.
func NewSQLKeyStore(db *sqlx.DB) *SQLKeyStore {
	return &SQLKeyStore{db: db}
}

// q rebinds ? placeholders to the driver's native format ($1,$2,... for PostgreSQL).
func (s *SQLKeyStore) q(query string) string { return s.db.Rebind(query) }

// Create inserts a new API key record.
func (s *SQLKeyStore) Create(ctx context.Context, name, keyHash string, expiresAt *time.Time) (*KeyRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var exp sql.NullTime
	if expiresAt != nil {
		exp = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO api_keys (id, name, key_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), id, name, keyHash, exp, now)
	if err != nil {
		return nil, err
	}

	var rec KeyRecord
	err = s.db.GetContext(ctx, &rec, s.q(`SELECT * FROM api_keys WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByHash returns the key record matching the given hash, or ErrNotFound.
func (s *SQLKeyStore) GetByHash(ctx context.Context, hash string) (*KeyRecord, error) {
	var rec KeyRecord
	err := s.db.GetContext(ctx, &rec, s.q(`SELECT * FROM api_keys WHERE key_hash = ?`), hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all key records, newest first.
func (s *SQLKeyStore) List(ctx context.Context) ([]*KeyRecord, error) {
	var records []*KeyRecord
	err := s.db.SelectContext(ctx, &records, `SELECT * FROM api_keys ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Revoke marks a key as revoked. Returns ErrNotFound if the key does not
// exist or was already revoked.
func (s *SQLKeyStore) Revoke(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL
	`), now, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastUsed updates the last_used_at timestamp for the given key.
func (s *SQLKeyStore) UpdateLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE api_keys SET last_used_at = ? WHERE id = ?
	`), now, id)
	return err
}

const (
	keyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// keyBodyLen base62 characters carry a little over 256 bits.
	keyBodyLen = 43
	// Random bytes at or above keyCutoff are discarded so every character of
	// keyAlphabet is equally likely.
	keyCutoff = 256 - 256%len(keyAlphabet)
)

// GenerateKey mints a plaintext key, KeyPrefix followed by keyBodyLen random
// base62 characters, and returns it along with the hash that is stored.
func GenerateKey() (plaintext, hash string, err error) {
	body := make([]byte, 0, keyBodyLen)
	buf := make([]byte, keyBodyLen)
	for len(body) < keyBodyLen {
		if _, err := rand.Read(buf); err != nil {
			return "", "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, c := range buf {
			if int(c) >= keyCutoff {
				continue
			}
			body = append(body, keyAlphabet[int(c)%len(keyAlphabet)])
			if len(body) == keyBodyLen {
				break
			}
		}
	}
	plaintext = KeyPrefix + string(body)
	return plaintext, HashKey(plaintext), nil
}

// HashKey returns the hex-encoded SHA-256 hash of a plaintext key.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
