package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/me/rangerd/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Peer directory ---

func (s *SQLiteStore) UpsertPeer(ctx context.Context, handle model.HandleID, addr net.HardwareAddr) error {
	s.logger.Debug("sql", "op", "upsert", "table", "peers", "handle", handle)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO peers (handle, mac, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(handle) DO UPDATE SET mac = excluded.mac, updated_at = excluded.updated_at`,
		int64(handle), addr.String(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) DeletePeer(ctx context.Context, handle model.HandleID) error {
	s.logger.Debug("sql", "op", "delete", "table", "peers", "handle", handle)

	res, err := s.db.ExecContext(ctx, `DELETE FROM peers WHERE handle = ?`, int64(handle))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListPeers(ctx context.Context) ([]model.DirectoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT handle, mac, updated_at FROM peers ORDER BY handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.DirectoryEntry
	for rows.Next() {
		var (
			handle    int64
			mac       string
			updatedAt string
		)
		if err := rows.Scan(&handle, &mac, &updatedAt); err != nil {
			return nil, err
		}
		entry, err := scanDirectoryEntry(handle, mac, updatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ResolvePeers(ctx context.Context, handles []model.HandleID) (map[model.HandleID]net.HardwareAddr, error) {
	out := make(map[model.HandleID]net.HardwareAddr, len(handles))
	for _, h := range handles {
		var mac string
		err := s.db.QueryRowContext(ctx,
			`SELECT mac FROM peers WHERE handle = ?`, int64(h)).Scan(&mac)
		if err == sql.ErrNoRows {
			continue // unknown handle: simply absent from the result
		}
		if err != nil {
			return nil, err
		}
		addr, err := net.ParseMAC(mac)
		if err != nil {
			return nil, fmt.Errorf("corrupt mac for handle %d: %w", h, err)
		}
		out[h] = addr
	}
	return out, nil
}

// --- Ranging history ---

func (s *SQLiteStore) RecordRanging(ctx context.Context, rec *model.RangingRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "rangings", "id", rec.ID)

	resultsJSON, err := rec.MarshalResults()
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rangings (id, owner, command_id, outcome, failure_code, results, submitted_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Owner), int64(rec.CommandID), string(rec.Outcome),
		string(rec.FailureCode), resultsJSON,
		rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetRanging(ctx context.Context, id string) (*model.RangingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, command_id, outcome, failure_code, results, submitted_at, completed_at
		 FROM rangings WHERE id = ?`, id)

	rec, err := scanRanging(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) ListRangings(ctx context.Context, opts model.ListOptions) ([]*model.RangingRecord, int, error) {
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rangings`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, command_id, outcome, failure_code, results, submitted_at, completed_at
		 FROM rangings ORDER BY submitted_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []*model.RangingRecord
	for rows.Next() {
		rec, err := scanRanging(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}
	return recs, total, rows.Err()
}

// --- scan helpers ---

func scanDirectoryEntry(handle int64, mac, updatedAt string) (model.DirectoryEntry, error) {
	addr, err := net.ParseMAC(mac)
	if err != nil {
		return model.DirectoryEntry{}, fmt.Errorf("corrupt mac for handle %d: %w", handle, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return model.DirectoryEntry{}, fmt.Errorf("corrupt updated_at for handle %d: %w", handle, err)
	}
	return model.DirectoryEntry{Handle: model.HandleID(handle), Addr: addr, UpdatedAt: ts}, nil
}

func scanRanging(scan func(dest ...any) error) (*model.RangingRecord, error) {
	var (
		rec         model.RangingRecord
		owner       string
		commandID   int64
		outcome     string
		failureCode string
		resultsJSON string
		submittedAt string
		completedAt string
	)
	if err := scan(&rec.ID, &owner, &commandID, &outcome, &failureCode,
		&resultsJSON, &submittedAt, &completedAt); err != nil {
		return nil, err
	}

	rec.Owner = model.OwnerID(owner)
	rec.CommandID = uint32(commandID)
	rec.Outcome = model.RangingOutcome(outcome)
	rec.FailureCode = model.FailureCode(failureCode)

	if err := json.Unmarshal([]byte(resultsJSON), &rec.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results for %s: %w", rec.ID, err)
	}

	var err error
	if rec.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt); err != nil {
		return nil, fmt.Errorf("corrupt submitted_at for %s: %w", rec.ID, err)
	}
	if rec.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return nil, fmt.Errorf("corrupt completed_at for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
