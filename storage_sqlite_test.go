package assetpipe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "manifest.db")

	storage, err := OpenSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLiteStorage() error = %v", err)
	}
	defer storage.Close()

	doc, err := storage.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on empty database error = %v", err)
	}
	if len(doc.References) != 0 {
		t.Fatalf("expected empty document, got %d references", len(doc.References))
	}

	// Sources are not checked on load, so the references can live in memory.
	memFs := afero.NewMemMapFs()
	m, err := OpenManifest(ctx, storage, WithManifestNowFunc(fixedNowFunc))
	if err != nil {
		t.Fatal(err)
	}
	app := newTestReference(t, memFs, TypeScript, "scripts/app.js")
	logo := newTestReference(t, memFs, TypeImage, "images/logo.png")
	m.Register(app)
	m.Register(logo)
	if _, err := m.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// Commit again with one reference less, rows must be replaced.
	m.Remove(logo.Name)
	if _, err := m.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(loaded.References))
	}
	if got := loaded.References[app.Name]; !got.Equal(app) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, app)
	}
	if loaded.Revision != m.Revision() {
		t.Errorf("expected revision %s, got %s", m.Revision(), loaded.Revision)
	}
	if !loaded.UpdatedAt.Equal(fixedNowFunc()) {
		t.Errorf("expected updatedAt %v, got %v", fixedNowFunc(), loaded.UpdatedAt)
	}
}
