package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lyftr/internal/constants"
	"lyftr/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	message_id  TEXT PRIMARY KEY,
	from_msisdn TEXT NOT NULL,
	to_msisdn   TEXT NOT NULL,
	ts          TEXT NOT NULL,
	text        TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts, message_id);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_msisdn);
`

var ErrSchemaMissing = errors.New("messages table does not exist")

// OpenDB opens the SQLite file at path, creating its directory if needed.
// One connection serializes writers so busy errors never reach callers.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+constants.SQLiteDSNParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

type SQLiteRepository struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// NewRepository wraps db. m may be nil.
func NewRepository(db *sql.DB, m *metrics.Metrics) *SQLiteRepository {
	return &SQLiteRepository{db: db, metrics: m}
}

// Migrate creates the schema if absent. Safe to run repeatedly.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create messages schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.IncDatabaseQuery(operation, status)
	r.metrics.ObserveDatabaseQueryDuration(operation, time.Since(start))
}

func (r *SQLiteRepository) Insert(ctx context.Context, msg Message) (outcome Outcome, err error) {
	defer func(start time.Time) { r.observe("insert", start, err) }(time.Now())

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		msg.MessageID, msg.FromMSISDN, msg.ToMSISDN, msg.TS, nullString(msg.Text), msg.CreatedAt,
	)
	if err != nil {
		return OutcomeStorageError, fmt.Errorf("failed to insert message %s: %w", msg.MessageID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return OutcomeStorageError, fmt.Errorf("failed to read insert result for message %s: %w", msg.MessageID, err)
	}
	if affected == 0 {
		return OutcomeDuplicate, nil
	}
	return OutcomeCreated, nil
}

func buildWhere(filter Filter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.From != nil {
		conditions = append(conditions, "from_msisdn = ?")
		args = append(args, *filter.From)
	}
	if filter.Since != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Query != nil {
		conditions = append(conditions, "instr(lower(text), lower(?)) > 0")
		args = append(args, *filter.Query)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Query returns one page ordered by (ts, message_id) together with the size
// of the whole filtered set. Both are read inside one transaction.
func (r *SQLiteRepository) Query(ctx context.Context, filter Filter, limit, offset int) (result QueryResult, err error) {
	defer func(start time.Time) { r.observe("query", start, err) }(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to begin query transaction: %w", err)
	}
	defer tx.Rollback()

	where, args := buildWhere(filter)

	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&result.Total); err != nil {
		return QueryResult{}, fmt.Errorf("failed to count messages: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT message_id, from_msisdn, to_msisdn, ts, text, created_at FROM messages"+where+
			" ORDER BY ts ASC, message_id ASC LIMIT ? OFFSET ?",
		append(args, limit, offset)...,
	)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	result.Messages = make([]Message, 0, limit)
	for rows.Next() {
		var (
			m    Message
			text sql.NullString
		)
		if err = rows.Scan(&m.MessageID, &m.FromMSISDN, &m.ToMSISDN, &m.TS, &text, &m.CreatedAt); err != nil {
			return QueryResult{}, fmt.Errorf("failed to scan message: %w", err)
		}
		if text.Valid {
			m.Text = &text.String
		}
		result.Messages = append(result.Messages, m)
	}
	if err = rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return result, tx.Commit()
}

// Stats aggregates over every stored message. Top senders are ordered by
// count descending, then sender ascending.
func (r *SQLiteRepository) Stats(ctx context.Context) (stats Stats, err error) {
	defer func(start time.Time) { r.observe("stats", start, err) }(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	var first, last sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT from_msisdn), MIN(ts), MAX(ts) FROM messages",
	).Scan(&stats.TotalMessages, &stats.SendersCount, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate messages: %w", err)
	}
	if first.Valid {
		stats.FirstMessageTS = &first.String
	}
	if last.Valid {
		stats.LastMessageTS = &last.String
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT from_msisdn, COUNT(*) AS cnt
		FROM messages
		GROUP BY from_msisdn
		ORDER BY cnt DESC, from_msisdn ASC
		LIMIT ?`, constants.TopSenders)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query top senders: %w", err)
	}
	defer rows.Close()

	stats.MessagesPerSender = make([]SenderCount, 0, constants.TopSenders)
	for rows.Next() {
		var sc SenderCount
		if err = rows.Scan(&sc.From, &sc.Count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan sender count: %w", err)
		}
		stats.MessagesPerSender = append(stats.MessagesPerSender, sc)
	}
	if err = rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("failed to iterate sender counts: %w", err)
	}

	return stats, tx.Commit()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	var name string
	err := r.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'messages'",
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSchemaMissing
	}
	if err != nil {
		return fmt.Errorf("failed to check messages schema: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ Repository = (*SQLiteRepository)(nil)
