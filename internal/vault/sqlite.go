package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aitsambajwa-iss/Checkoutly/internal/cryptoutil"
	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/vault")

// SQLiteStore keeps token entries in SQLite with values sealed by AES-256-GCM.
type SQLiteStore struct {
	db  *sql.DB
	gcm cipher.AEAD
}

// NewSQLiteStore opens (or creates) the vault database.
// The key must be exactly 32 raw bytes or 64 hex characters.
func NewSQLiteStore(dbPath, key string) (*SQLiteStore, error) {
	keyBytes, err := cryptoutil.ResolveKey(key)
	if err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening vault database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS secure_tokens (
		token TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		encrypted_value TEXT NOT NULL,
		nonce TEXT NOT NULL,
		call_id TEXT NOT NULL,
		turn_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_secure_tokens_call ON secure_tokens(call_id);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &SQLiteStore{db: db, gcm: gcm}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put seals and stores one entry. A token that already exists is rejected with ErrTokenExists.
func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	ctx, span := tracer.Start(ctx, "vault.put",
		trace.WithAttributes(
			attribute.String("vault.kind", e.Kind),
			attribute.String("vault.call_id", e.ChatID),
		))
	defer span.End()

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		span.RecordError(err)
		return fmt.Errorf("generating nonce: %w", err)
	}
	// The token is bound as associated data so a sealed value cannot be moved to another row.
	ciphertext := s.gcm.Seal(nil, nonce, []byte(e.Value), []byte(e.Token))

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secure_tokens (token, kind, encrypted_value, nonce, call_id, turn_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Token, e.Kind,
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce),
		e.ChatID, e.TurnID, createdAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrTokenExists
		}
		span.RecordError(err)
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// Reveal decrypts the value behind a token. Operator use only.
func (s *SQLiteStore) Reveal(ctx context.Context, token string) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "vault.reveal")
	defer span.End()

	var e Entry
	var encryptedValue, nonceB64 string
	err := s.db.QueryRowContext(ctx,
		`SELECT token, kind, encrypted_value, nonce, call_id, turn_id, created_at
		 FROM secure_tokens WHERE token = ?`, token,
	).Scan(&e.Token, &e.Kind, &encryptedValue, &nonceB64, &e.ChatID, &e.TurnID, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying token: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedValue)
	if err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, fmt.Errorf("decoding nonce: %w", err)
	}
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, []byte(e.Token))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decrypting value: %w", err)
	}
	e.Value = string(plaintext)
	return &e, nil
}

// Count returns the number of stored tokens, optionally restricted to one chat.
func (s *SQLiteStore) Count(ctx context.Context, chatID string) (int, error) {
	query := `SELECT COUNT(*) FROM secure_tokens`
	var args []any
	if chatID != "" {
		query += ` WHERE call_id = ?`
		args = append(args, chatID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tokens: %w", err)
	}
	return n, nil
}
