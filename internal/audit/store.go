package audit

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/aitsambajwa-iss/Checkoutly/internal/cryptoutil"
)

const nonceSize = 24

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists signed records in the llm_audit_logs table. The
// original content is sealed with secretbox; only the sanitized text is
// stored in the clear.
type SQLiteStore struct {
	db      *sql.DB
	signer  *Signer
	sealKey *[cryptoutil.KeySize]byte
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	ChatID string
	From   time.Time
	To     time.Time
	Limit  int
}

// NewSQLiteStore opens (or creates) the audit database.
func NewSQLiteStore(dbPath, signingKey, sealKey string) (*SQLiteStore, error) {
	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, err
	}
	key, err := cryptoutil.ResolveKeyArray(sealKey)
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS llm_audit_logs (
		id TEXT PRIMARY KEY,
		turn_id TEXT NOT NULL,
		call_id TEXT NOT NULL,
		message_role TEXT NOT NULL,
		sealed_original TEXT NOT NULL,
		sanitized_content TEXT NOT NULL,
		tokens_applied TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		signature TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_call ON llm_audit_logs(call_id);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON llm_audit_logs(timestamp);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	return &SQLiteStore{db: db, signer: signer, sealKey: key}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Write signs and appends a record. It implements Sink.
func (s *SQLiteStore) Write(ctx context.Context, r Record) error {
	ctx, span := tracer.Start(ctx, "audit.write",
		trace.WithAttributes(
			attribute.String("audit.id", r.ID),
			attribute.String("chat.id", r.ChatID),
			attribute.Int("chat.tokens_applied", len(r.TokensApplied)),
		))
	defer span.End()

	r.Timestamp = r.Timestamp.UTC()
	signature, err := s.signer.Sign(r)
	if err != nil {
		return fmt.Errorf("signing record: %w", err)
	}
	sealed, err := s.seal(r.OriginalContent)
	if err != nil {
		return err
	}
	tokens, err := json.Marshal(nonNil(r.TokensApplied))
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO llm_audit_logs (id, turn_id, call_id, message_role, sealed_original, sanitized_content, tokens_applied, timestamp, signature)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TurnID, r.ChatID, r.Role, sealed, r.SanitizedContent,
		string(tokens), r.Timestamp.Format(timeLayout), signature,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("storing audit record: %w", err)
	}
	return nil
}

// List returns records newest first with the original content left sealed.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "audit.list",
		trace.WithAttributes(attribute.String("chat.id", f.ChatID)))
	defer span.End()

	query := `SELECT id, turn_id, call_id, message_role, sanitized_content, tokens_applied, timestamp, signature
	          FROM llm_audit_logs WHERE 1=1`
	args := []any{}
	if f.ChatID != "" {
		query += ` AND call_id = ?`
		args = append(args, f.ChatID)
	}
	if !f.From.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if !f.To.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, f.To.UTC().Format(timeLayout))
	}
	query += ` ORDER BY timestamp DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var (
			r         Record
			tokens    string
			timestamp string
		)
		if err := rows.Scan(&r.ID, &r.TurnID, &r.ChatID, &r.Role, &r.SanitizedContent, &tokens, &timestamp, &r.Signature); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		if err := decodeRow(&r, tokens, timestamp); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	span.SetAttributes(attribute.Int("audit.count", len(results)))
	return results, rows.Err()
}

// Open returns a record with its original content unsealed. Operator use only.
func (s *SQLiteStore) Open(ctx context.Context, id string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "audit.open",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	var (
		r                         Record
		sealed, tokens, timestamp string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, turn_id, call_id, message_role, sealed_original, sanitized_content, tokens_applied, timestamp, signature
		 FROM llm_audit_logs WHERE id = ?`, id,
	).Scan(&r.ID, &r.TurnID, &r.ChatID, &r.Role, &sealed, &r.SanitizedContent, &tokens, &timestamp, &r.Signature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying audit record: %w", err)
	}
	if err := decodeRow(&r, tokens, timestamp); err != nil {
		return nil, err
	}
	if r.OriginalContent, err = s.unseal(sealed); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &r, nil
}

// Verify recomputes the signature of a stored record.
func (s *SQLiteStore) Verify(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "audit.verify",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	r, err := s.Open(ctx, id)
	if err != nil {
		return false, err
	}
	return s.signer.Verify(*r), nil
}

func (s *SQLiteStore) seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, s.sealKey)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (s *SQLiteStore) unseal(sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed content: %w", err)
	}
	if len(box) < nonceSize {
		return "", errors.New("sealed content too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, s.sealKey)
	if !ok {
		return "", errors.New("unsealing original content failed")
	}
	return string(plaintext), nil
}

func decodeRow(r *Record, tokens, timestamp string) error {
	if err := json.Unmarshal([]byte(tokens), &r.TokensApplied); err != nil {
		return fmt.Errorf("decoding tokens of %s: %w", r.ID, err)
	}
	ts, err := time.Parse(timeLayout, timestamp)
	if err != nil {
		return fmt.Errorf("decoding timestamp of %s: %w", r.ID, err)
	}
	r.Timestamp = ts
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
