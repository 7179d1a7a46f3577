//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"klados/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveFit(ctx context.Context, fit model.FitRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeFit(fit)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO fits (id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, fit.ID, fit.SchemaVersion, fit.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetFit(ctx context.Context, id string) (model.FitRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.FitRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM fits WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.FitRecord{}, false, nil
		}
		return model.FitRecord{}, false, err
	}

	fit, err := DecodeFit(payload)
	if err != nil {
		return model.FitRecord{}, false, fmt.Errorf("decode fit %s: %w", id, err)
	}
	return fit, true, nil
}

func (s *SQLiteStore) SaveTree(ctx context.Context, tree model.TreeRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeTree(tree)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trees (id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, tree.ID, tree.SchemaVersion, tree.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetTree(ctx context.Context, id string) (model.TreeRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.TreeRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM trees WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TreeRecord{}, false, nil
		}
		return model.TreeRecord{}, false, err
	}

	tree, err := DecodeTree(payload)
	if err != nil {
		return model.TreeRecord{}, false, fmt.Errorf("decode tree %s: %w", id, err)
	}
	return tree, true, nil
}

func (s *SQLiteStore) SaveModelSummary(ctx context.Context, summary model.ModelSummary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeModelSummary(summary)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO model_summaries (name, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, summary.Name, summary.SchemaVersion, summary.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetModelSummary(ctx context.Context, name string) (model.ModelSummary, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.ModelSummary{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM model_summaries WHERE name = ?`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ModelSummary{}, false, nil
		}
		return model.ModelSummary{}, false, err
	}

	summary, err := DecodeModelSummary(payload)
	if err != nil {
		return model.ModelSummary{}, false, fmt.Errorf("decode model summary %s: %w", name, err)
	}
	return summary, true, nil
}

func (s *SQLiteStore) SaveLnLHistory(ctx context.Context, fitID string, history []float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeLnLHistory(history)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO lnl_history (fit_id, payload)
		VALUES (?, ?)
		ON CONFLICT(fit_id) DO UPDATE SET
			payload = excluded.payload
	`, fitID, payload)
	return err
}

func (s *SQLiteStore) GetLnLHistory(ctx context.Context, fitID string) ([]float64, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM lnl_history WHERE fit_id = ?`, fitID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	history, err := DecodeLnLHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode lnl history %s: %w", fitID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fits (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trees (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS model_summaries (
			name TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS lnl_history (
			fit_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
