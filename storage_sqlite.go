package assetpipe

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStorage keeps the manifest in a SQLite database, one row per reference.
// Useful when several processes read the manifest; writes still assume a
// single writer.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLiteStorage creates or opens the database at path and applies the schema.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load implements Storage.
func (s *SQLiteStorage) Load(ctx context.Context) (*Document, error) {
	doc := &Document{Version: documentVersion, References: map[string]Reference{}}

	meta, err := s.readMeta(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := meta["version"]; ok {
		if doc.Version, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid manifest version %q: %w", v, err)
		}
	}
	doc.Revision = meta["revision"]
	if v, ok := meta["updated_at"]; ok {
		if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("invalid manifest timestamp %q: %w", v, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, type, public_url, sources FROM asset_references ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, typ, publicURL, sourcesJSON string
		if err := rows.Scan(&name, &typ, &publicURL, &sourcesJSON); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}

		t, err := ParseType(typ)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", name, err)
		}
		raw := referenceJSON{Type: t, Name: name, PublicURL: publicURL}
		if err := json.Unmarshal([]byte(sourcesJSON), &raw.Sources); err != nil {
			return nil, fmt.Errorf("reference %s: invalid sources: %w", name, err)
		}

		var ref Reference
		if err := ref.restore(raw); err != nil {
			return nil, fmt.Errorf("reference %s: %w", name, err)
		}
		doc.References[ref.Name] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}

	return doc, nil
}

func (s *SQLiteStorage) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM manifest_meta`)
	if err != nil {
		return nil, fmt.Errorf("load manifest meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan manifest meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Save implements Storage. All rows are replaced in a single transaction.
func (s *SQLiteStorage) Save(ctx context.Context, doc *Document) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM asset_references`); err != nil {
		return fmt.Errorf("clear references: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO asset_references (name, type, public_url, sources) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for name, ref := range doc.References {
		sources, mErr := json.Marshal(ref.Sources())
		if mErr != nil {
			err = fmt.Errorf("reference %s: marshal sources: %w", name, mErr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, ref.Name, ref.Type.String(), ref.PublicURL, string(sources)); err != nil {
			return fmt.Errorf("insert reference %s: %w", name, err)
		}
	}

	meta := map[string]string{
		"version":    strconv.Itoa(doc.Version),
		"revision":   doc.Revision,
		"updated_at": doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, `INSERT INTO manifest_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write manifest meta %s: %w", k, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
