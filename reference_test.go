package assetpipe

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestNewReference(t *testing.T) {
	memFs := afero.NewMemMapFs()
	app := writeSource(t, memFs, "scripts/app.js", "console.log('app')")

	ref, err := NewReference(memFs, TypeScript, "App", `\scripts\app`, []string{app})
	if err != nil {
		t.Fatalf("NewReference() error = %v", err)
	}

	if ref.Name != "script.app" {
		t.Errorf("expected name script.app, got %s", ref.Name)
	}
	if ref.PublicURL != "/scripts/app.js" {
		t.Errorf("expected public url /scripts/app.js, got %s", ref.PublicURL)
	}
	want := map[string]string{"app.js": app}
	if !reflect.DeepEqual(ref.Sources(), want) {
		t.Errorf("expected sources %v, got %v", want, ref.Sources())
	}
}

func TestNewReference_PublicURL(t *testing.T) {
	memFs := afero.NewMemMapFs()

	testCases := []struct {
		name    string
		typ     Type
		url     string
		want    string
		wantErr bool
	}{
		{"Relative", TypeStyle, "/styles/main.css", "/styles/main.css", false},
		{"Extension appended", TypeStyle, "/styles/admin", "/styles/admin.css", false},
		{"Image keeps url", TypeImage, "/images/logo.png", "/images/logo.png", false},
		{"Duplicate slashes", TypeScript, "//scripts//app.js", "", true},
		{"Absolute", TypeScript, "https://cdn.example.com/app.js", "", true},
		{"Missing leading slash", TypeScript, "scripts/app.js", "", true},
		{"Empty", TypeScript, "", "", true},
		{"Dot segments cleaned", TypeScript, "/scripts/./app.js", "/scripts/app.js", false},
		{"Parent segments", TypeScript, "/../../../etc/evil.js", "", true},
		{"Parent segment inside", TypeImage, "/images/../../secret.png", "", true},
		{"Backslash parent segments", TypeStyle, `\styles\..\..\x.css`, "", true},
		{"Root only", TypeImage, "/", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := NewReference(memFs, tc.typ, "x", tc.url, nil)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got reference %+v", tc.url, ref)
				}
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewReference() error = %v", err)
			}
			if ref.PublicURL != tc.want {
				t.Errorf("expected %s, got %s", tc.want, ref.PublicURL)
			}
			if ref.PublicURL[0] != '/' {
				t.Errorf("public url %q does not start with /", ref.PublicURL)
			}
		})
	}
}

func TestNewReference_Errors(t *testing.T) {
	memFs := afero.NewMemMapFs()

	t.Run("Missing source names the path", func(t *testing.T) {
		_, err := NewReference(memFs, TypeScript, "app", "/scripts/app.js", []string{"/project/assets/scripts/missing.js"})
		if err == nil {
			t.Fatal("expected error for missing source")
		}
		if !strings.Contains(err.Error(), "/project/assets/scripts/missing.js") {
			t.Errorf("expected error to name the path, got %v", err)
		}
	})

	t.Run("Invalid characters", func(t *testing.T) {
		_, err := NewReference(memFs, TypeScript, "app$", "/scripts/app.js", nil)
		if err == nil {
			t.Fatal("expected error for invalid name")
		}
	})

	t.Run("Fail-fast by default", func(t *testing.T) {
		_, err := NewReference(memFs, TypeScript, "app$", "scripts/app.js", nil)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(ve.Errors) != 1 {
			t.Errorf("expected 1 error in fail-fast mode, got %d", len(ve.Errors))
		}
	})

	t.Run("Accumulated", func(t *testing.T) {
		_, err := NewReference(memFs, TypeScript, "app$", "scripts/app.js", []string{"/nope.js"}, withReferenceErrors(true))
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(ve.Errors) != 3 {
			t.Errorf("expected 3 accumulated errors, got %d: %v", len(ve.Errors), ve)
		}
	})

	t.Run("Invalid type", func(t *testing.T) {
		_, err := NewReference(memFs, Type(42), "x", "/x", nil)
		if !errors.Is(err, ErrInvalidType) {
			t.Errorf("expected ErrInvalidType, got %v", err)
		}
	})
}

func TestReference_Sources(t *testing.T) {
	memFs := afero.NewMemMapFs()
	writeSource(t, memFs, "styles/admin/b.css", "b{}")
	writeSource(t, memFs, "styles/admin/a.css", "a{}")
	writeSource(t, memFs, "styles/admin/notes.txt", "ignored")
	writeSource(t, memFs, "styles/admin/nested/c.css", "c{}")
	other := writeSource(t, memFs, "vendor/a.css", "vendor{}")

	ref, err := NewReference(memFs, TypeStyle, "admin", "/styles/admin", []string{"/project/assets/styles/admin"})
	if err != nil {
		t.Fatalf("NewReference() error = %v", err)
	}

	want := []string{"/project/assets/styles/admin/a.css", "/project/assets/styles/admin/b.css"}
	if got := ref.SourcePaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected sorted direct children %v, got %v", want, got)
	}

	t.Run("First registered wins", func(t *testing.T) {
		r := ref
		r.sources = ref.Sources()
		if err := r.AddSource(memFs, other, false); err != nil {
			t.Fatal(err)
		}
		if r.Sources()["a.css"] != "/project/assets/styles/admin/a.css" {
			t.Errorf("expected original a.css to be kept, got %s", r.Sources()["a.css"])
		}
	})

	t.Run("Override", func(t *testing.T) {
		r := ref
		r.sources = ref.Sources()
		if err := r.AddSource(memFs, other, true); err != nil {
			t.Fatal(err)
		}
		if r.Sources()["a.css"] != other {
			t.Errorf("expected override to %s, got %s", other, r.Sources()["a.css"])
		}
	})
}

func TestReference_JSON(t *testing.T) {
	memFs := afero.NewMemMapFs()
	app := writeSource(t, memFs, "scripts/app.js", "x")

	ref, err := NewReference(memFs, TypeScript, "app", "/scripts/app.js", []string{app})
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(ref)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"script","name":"script.app","publicUrl":"/scripts/app.js","sources":{"app.js":"/project/assets/scripts/app.js"}}`
	if string(data) != want {
		t.Errorf("unexpected json:\n got %s\nwant %s", data, want)
	}

	var decoded Reference
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(ref) {
		t.Errorf("decoded reference %+v differs from %+v", decoded, ref)
	}

	t.Run("Rejects absolute url", func(t *testing.T) {
		bad := `{"type":"script","name":"script.app","publicUrl":"https://x/app.js","sources":{}}`
		if err := json.Unmarshal([]byte(bad), &decoded); err == nil {
			t.Error("expected error for absolute public url")
		}
	})

	t.Run("Rejects parent segments", func(t *testing.T) {
		bad := `{"type":"script","name":"script.app","publicUrl":"/../../etc/evil.js","sources":{}}`
		if err := json.Unmarshal([]byte(bad), &decoded); err == nil {
			t.Error("expected error for a public url leaving the site root")
		}
	})

	t.Run("Rejects unknown type", func(t *testing.T) {
		bad := `{"type":"sound","name":"sound.x","publicUrl":"/x","sources":{}}`
		if err := json.Unmarshal([]byte(bad), &decoded); err == nil {
			t.Error("expected error for unknown type")
		}
	})
}
