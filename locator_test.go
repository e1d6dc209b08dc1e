package assetpipe

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func newTestLocator(t *testing.T, memFs afero.Fs) *Locator {
	t.Helper()
	m, err := OpenManifest(context.Background(), NewFileStorage(memFs, DefaultManifestPath(testRoot)))
	if err != nil {
		t.Fatal(err)
	}
	return NewLocator(memFs, DefaultLayout(testRoot), m, nil)
}

func TestLocator_PrepareDirectories(t *testing.T) {
	memFs := afero.NewMemMapFs()
	l := newTestLocator(t, memFs)

	if err := l.PrepareDirectories(); err != nil {
		t.Fatalf("PrepareDirectories() error = %v", err)
	}

	layout := DefaultLayout(testRoot)
	for _, typ := range Types() {
		if ok, _ := afero.DirExists(memFs, layout.TypeDir(typ)); !ok {
			t.Errorf("expected %s to exist", layout.TypeDir(typ))
		}
	}
	if ok, _ := afero.DirExists(memFs, layout.PublicAssets); !ok {
		t.Errorf("expected %s to exist", layout.PublicAssets)
	}

	t.Run("File in the way", func(t *testing.T) {
		memFs := afero.NewMemMapFs()
		l := newTestLocator(t, memFs)
		if err := afero.WriteFile(memFs, layout.TypeDir(TypeFont), []byte("not a dir"), 0o644); err != nil {
			t.Fatal(err)
		}

		err := l.PrepareDirectories()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestLocator_Scan(t *testing.T) {
	memFs := afero.NewMemMapFs()
	writeSource(t, memFs, "scripts/app.js", "var a")
	writeSource(t, memFs, "scripts/util.mjs", "export {}")
	writeSource(t, memFs, "scripts/readme.txt", "skip")
	writeSource(t, memFs, "scripts/vendor/jquery.js", "not direct")
	writeSource(t, memFs, "styles/main.css", "body{}")
	writeSource(t, memFs, "styles/admin/a.css", "a{}")
	writeSource(t, memFs, "styles/admin/b.css", "b{}")
	writeSource(t, memFs, "styles/empty/readme.md", "no css")
	writeSource(t, memFs, "images/logo.png", "png")
	writeSource(t, memFs, "images/icons/home.svg", "<svg/>")
	writeSource(t, memFs, "images/icons/notes.txt", "invalid")
	writeSource(t, memFs, "fonts/inter.woff2", "font")

	l := newTestLocator(t, memFs)
	refs, err := l.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	var names []string
	urls := map[string]string{}
	for _, ref := range refs {
		names = append(names, ref.Name)
		urls[ref.Name] = ref.PublicURL
	}

	want := []string{
		"image.icons.home",
		"image.logo",
		"script.app",
		"script.util",
		"style.admin",
		"style.main",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("unexpected names:\n got %v\nwant %v", names, want)
	}

	if urls["style.admin"] != "/styles/admin.css" {
		t.Errorf("expected bundled style url /styles/admin.css, got %s", urls["style.admin"])
	}
	if urls["image.icons.home"] != "/images/icons/home.svg" {
		t.Errorf("unexpected image url %s", urls["image.icons.home"])
	}

	for _, ref := range refs {
		if ref.Name == "style.admin" && len(ref.Sources()) != 2 {
			t.Errorf("expected style.admin to bundle 2 files, got %v", ref.Sources())
		}
	}
}

func TestLocator_Scan_MissingDirectories(t *testing.T) {
	memFs := afero.NewMemMapFs()
	l := newTestLocator(t, memFs)

	refs, err := l.Scan(TypeScript, TypeStyle)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected nothing, got %v", refs)
	}

	if _, err := l.Scan(Type(0)); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestLocator_Scan_DuplicateNames(t *testing.T) {
	memFs := afero.NewMemMapFs()
	mainCSS := writeSource(t, memFs, "styles/main.css", "body{}")
	writeSource(t, memFs, "styles/main/extra.css", "a{}")
	logo := writeSource(t, memFs, "images/logo.png", "png")
	writeSource(t, memFs, "images/logo.svg", "<svg/>")

	l := newTestLocator(t, memFs)
	refs, err := l.Scan()

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("expected 2 duplicate reports, got %d: %v", len(ve.Errors), ve.Errors)
	}

	kept := map[string][]string{}
	for _, ref := range refs {
		kept[ref.Name] = ref.SourcePaths()
	}
	want := map[string][]string{
		"image.logo": {logo},
		"style.main": {mainCSS},
	}
	if !reflect.DeepEqual(kept, want) {
		t.Errorf("unexpected references:\n got %v\nwant %v", kept, want)
	}
}

func TestLocator_Discover(t *testing.T) {
	memFs := afero.NewMemMapFs()
	writeSource(t, memFs, "scripts/app.js", "var a")
	writeSource(t, memFs, "scripts/bad$name.js", "var b")
	l := newTestLocator(t, memFs)

	found, err := l.Discover(TypeScript)
	if err == nil {
		t.Fatal("expected discovery to report the invalid file")
	}
	if found != 1 {
		t.Errorf("expected 1 reference, got %d", found)
	}
	if !l.manifest.Has("script.app") {
		t.Error("expected valid file to be registered despite the invalid one")
	}

	// Discovery is idempotent.
	if _, err := l.manifest.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	l.Discover(TypeScript)
	if l.manifest.HasChanges() {
		t.Error("expected second discovery to leave the manifest unchanged")
	}
}
