// CLAUDE:SUMMARY SQLite key/value settings store mirroring the extension storage keys (sfs, disabledWikis, ...).
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/farmshift/dbopen"
)

// Schema for the settings table. Values are JSON documents keyed like the
// browser storage the settings originate from.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Storage keys.
const (
	KeyProviders     = "sfs"
	KeySiteModes     = "siteModes"
	KeyDisabledSites = "disabledWikis"
	KeyIndexedScan   = "ffUseOptimisedSearchCore"
)

// Store reads and writes settings in SQLite.
type Store struct {
	DB *sql.DB

	// Logger receives decode failures at debug level; nil uses slog.Default().
	Logger *slog.Logger
}

// OpenStore opens (or creates) a settings database at path. The caller
// must blank-import modernc.org/sqlite.
func OpenStore(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// Load implements Source. Keys that are absent or do not decode keep their
// default value.
func (s *Store) Load(ctx context.Context) (*View, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key, value FROM settings WHERE key IN (?, ?, ?, ?)`,
		KeyProviders, KeySiteModes, KeyDisabledSites, KeyIndexedScan)
	if err != nil {
		return nil, fmt.Errorf("settings: load: %w", err)
	}
	defer rows.Close()

	var v View
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("settings: scan: %w", err)
		}
		// A corrupt value behaves like a missing key.
		var err error
		switch key {
		case KeyProviders:
			err = decodeValue(value, &v.Providers)
		case KeySiteModes:
			err = decodeValue(value, &v.SiteModes)
		case KeyDisabledSites:
			err = decodeValue(value, &v.DisabledSites)
		case KeyIndexedScan:
			err = decodeValue(value, &v.UseIndexedScan)
		}
		if err != nil {
			s.logger().Debug("settings: ignoring corrupt value", "key", key, "error", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings: rows: %w", err)
	}
	return v.WithDefaults(), nil
}

// decodeValue sets *dst only when the whole value decodes.
func decodeValue[T any](value string, dst *T) error {
	var tmp T
	if err := json.Unmarshal([]byte(value), &tmp); err != nil {
		return err
	}
	*dst = tmp
	return nil
}

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

const upsert = `
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// Set stores value (JSON-encoded) under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	return s.write(ctx, map[string]any{key: value})
}

// Save writes every key of v in one transaction.
func (s *Store) Save(ctx context.Context, v *View) error {
	return s.write(ctx, map[string]any{
		KeyProviders:     v.Providers,
		KeySiteModes:     v.SiteModes,
		KeyDisabledSites: v.DisabledSites,
		KeyIndexedScan:   v.UseIndexedScan,
	})
}

func (s *Store) write(ctx context.Context, values map[string]any) error {
	now := time.Now().UnixMilli()
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		for key, value := range values {
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			if _, err := tx.ExecContext(ctx, upsert, key, string(data), now); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}
