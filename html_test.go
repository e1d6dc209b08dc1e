package assetpipe

import (
	"context"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
)

const testAssetID = "0123456789abcdef"

// TestHTML_Golden compares rendered tags against testdata/golden/*.golden.
// Run with -update to rewrite the fixtures.
func TestHTML_Golden(t *testing.T) {
	ctx := context.Background()
	p, memFs := newTestPipeline(t, WithMinifier(PassthroughMinifier))
	writeSource(t, memFs, "scripts/app.js", "app()")
	writeSource(t, memFs, "styles/main.css", "body{color:red}")
	writeSource(t, memFs, "images/logo.png", "png")

	if _, err := p.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	testCases := []struct {
		name  string
		asset string
		attrs map[string]string
		opts  []RenderOption
	}{
		{"script", "script.app", nil, nil},
		{"script_defer", "script.app", map[string]string{"defer": ""}, nil},
		{"script_inline", "script.app", nil, []RenderOption{RenderInline()}},
		{"style", "style.main", map[string]string{"media": "print"}, nil},
		{"style_inline", "style.main", nil, []RenderOption{RenderInline()}},
		{"image", "image.logo", map[string]string{"class": "brand"}, nil},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]RenderOption{RenderID(testAssetID)}, tc.opts...)
			tag, err := p.HTML(ctx, tc.asset, tc.attrs, opts...)
			if err != nil {
				t.Fatalf("HTML() error = %v", err)
			}
			if tag.Name() != tc.asset || tag.AssetID() != testAssetID {
				t.Errorf("unexpected tag identity %s#%s", tag.Name(), tag.AssetID())
			}
			g.Assert(t, tc.name, []byte(tag.String()))
		})
	}
}

// TestHTML_Golden_InlineEscaping covers inline content that would
// otherwise close its element early.
func TestHTML_Golden_InlineEscaping(t *testing.T) {
	ctx := context.Background()
	p, memFs := newTestPipeline(t, WithMinifier(PassthroughMinifier))
	writeSource(t, memFs, "scripts/widget.js", `document.write("</script><b>x</b>")`)
	writeSource(t, memFs, "styles/quote.css", `q::after{content:"</STYLE>"}`)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tc := range []struct{ name, asset string }{
		{"script_inline_escaped", "script.widget"},
		{"style_inline_escaped", "style.quote"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tag, err := p.HTML(ctx, tc.asset, nil, RenderID(testAssetID), RenderInline())
			if err != nil {
				t.Fatalf("HTML() error = %v", err)
			}
			g.Assert(t, tc.name, []byte(tag.String()))
		})
	}
}

func TestEscapeRawText(t *testing.T) {
	testCases := []struct {
		tag, in, want string
	}{
		{"script", `a="</script>"`, `a="<\/script>"`},
		{"script", `a="</ScRiPt"`, `a="<\/ScRiPt"`},
		{"script", `a="</style>"`, `a="</style>"`},
		{"script", `if(a</b/.source)`, `if(a</b/.source)`},
		{"style", `x{content:"</style>"}`, `x{content:"<\/style>"}`},
		{"link", `</script>`, `</script>`},
	}
	for _, tc := range testCases {
		if got := escapeRawText(tc.tag, tc.in); got != tc.want {
			t.Errorf("escapeRawText(%s, %q) = %q, want %q", tc.tag, tc.in, got, tc.want)
		}
	}
}

func TestModel(t *testing.T) {
	ctx := context.Background()
	p, memFs := newTestPipeline(t, WithMinifier(PassthroughMinifier))
	writeSource(t, memFs, "scripts/app.js", "app()")

	m, err := p.Model("script.app", "")
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}

	t.Run("Derived asset id", func(t *testing.T) {
		if !validAssetID(m.AssetID()) {
			t.Errorf("invalid derived asset id %q", m.AssetID())
		}
		again, err := p.Model("script.app", "")
		if err != nil {
			t.Fatal(err)
		}
		if again.AssetID() != m.AssetID() {
			t.Errorf("expected stable asset id, got %s and %s", m.AssetID(), again.AssetID())
		}
	})

	t.Run("Caller asset id", func(t *testing.T) {
		if _, err := p.Model("script.app", "short"); err == nil {
			t.Error("expected error for a short asset id")
		}
		custom, err := p.Model("script.app", testAssetID)
		if err != nil {
			t.Fatal(err)
		}
		if custom.AssetID() != testAssetID {
			t.Errorf("expected %s, got %s", testAssetID, custom.AssetID())
		}
	})

	t.Run("Paths", func(t *testing.T) {
		if p, err := m.PublicPath(); err != nil || p != "/project/public/assets/scripts/app.js" {
			t.Errorf("unexpected public path %s (err %v)", p, err)
		}
		url, err := m.PublicURL()
		if err != nil {
			t.Fatal(err)
		}
		if url != "/assets/scripts/app.js" {
			t.Errorf("unexpected public url %s", url)
		}
	})

	t.Run("Version", func(t *testing.T) {
		if got := m.Version(); got != "?v="+m.AssetID() {
			t.Errorf("expected asset id version before publishing, got %s", got)
		}
		if _, err := m.Render(ctx, nil); err != nil {
			t.Fatal(err)
		}
		if got := m.Version(); got != "?v=1583020800" {
			t.Errorf("expected mtime version after publishing, got %s", got)
		}
	})

	t.Run("Published file", func(t *testing.T) {
		tag, err := m.Render(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !tag.Is(TypeScript) || tag.Is(TypeStyle) {
			t.Errorf("unexpected tag type %v", tag.Type())
		}
	})
}

func TestModel_Render_InvalidType(t *testing.T) {
	ctx := context.Background()
	p, memFs := newTestPipeline(t)
	font := writeSource(t, memFs, "fonts/inter.woff2", "font")

	ref, err := NewReference(memFs, TypeFont, "inter", "/fonts/inter.woff2", []string{font})
	if err != nil {
		t.Fatal(err)
	}
	p.Manifest().Register(ref)

	_, err = p.HTML(ctx, "font.inter", nil)
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestModel_Render_Empty(t *testing.T) {
	ctx := context.Background()
	p, memFs := newTestPipeline(t, WithMinifier(PassthroughMinifier))
	writeSource(t, memFs, "styles/empty.css", "")

	_, err := p.HTML(ctx, "style.empty", nil, RenderID(testAssetID))
	var empty *EmptyAssetError
	if !errors.As(err, &empty) {
		t.Fatalf("expected *EmptyAssetError, got %v", err)
	}
	if empty.Error() != `the asset "style.empty#0123456789abcdef" source is empty after compilation` {
		t.Errorf("unexpected message %q", empty.Error())
	}
}
