package assetpipe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Layout is the set of directories the pipeline reads from and writes to.
type Layout struct {
	Assets       string // source root, one sub directory per Type
	Public       string // web root, served as "/"
	PublicAssets string // rendered assets, must live inside Public
	Build        string // compiled artifacts, reused while fresh
	Manifest     string // JSON manifest file, used when no Storage is given
}

// DefaultLayout returns the conventional layout below a project root:
//
//	root/
//	├── assets/           styles/, scripts/, images/, ...
//	├── public/
//	│   └── assets/
//	└── var/
//	    ├── build/
//	    └── asset-manifest.json
func DefaultLayout(root string) Layout {
	return Layout{
		Assets:       filepath.Join(root, "assets"),
		Public:       filepath.Join(root, "public"),
		PublicAssets: filepath.Join(root, "public", "assets"),
		Build:        filepath.Join(root, "var", "build"),
		Manifest:     DefaultManifestPath(root),
	}
}

// DefaultManifestPath returns where the JSON manifest lives for a project root.
func DefaultManifestPath(root string) string {
	return filepath.Join(root, "var", "asset-manifest.json")
}

// TypeDir returns the source directory of t.
func (l Layout) TypeDir(t Type) string {
	return filepath.Join(l.Assets, t.Dir())
}

// Validate checks that every directory is set and PublicAssets is below Public.
func (l Layout) Validate() error {
	var errs []error
	for _, d := range []struct{ name, path string }{
		{"assets", l.Assets},
		{"public", l.Public},
		{"public assets", l.PublicAssets},
		{"build", l.Build},
	} {
		if d.path == "" {
			errs = append(errs, fmt.Errorf("%s directory is not set", d.name))
		}
	}
	if len(errs) == 0 {
		rel, err := filepath.Rel(l.Public, l.PublicAssets)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			errs = append(errs, errors.New("public assets directory must be inside the public directory"))
		}
	}
	return newValidationError(errs)
}

// assetsRelative returns path relative to the assets root as a URL path
// with a leading slash.
func (l Layout) assetsRelative(path string) (string, error) {
	rel, err := filepath.Rel(l.Assets, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid asset path %s: not inside %s", path, l.Assets)
	}
	return "/" + filepath.ToSlash(rel), nil
}

// publicPath maps a reference public URL to its file below PublicAssets.
func (l Layout) publicPath(publicURL string) (string, error) {
	return below(l.PublicAssets, publicURL)
}

// buildPath maps a reference public URL to its artifact below Build.
func (l Layout) buildPath(publicURL string) (string, error) {
	return below(l.Build, publicURL)
}

// below joins a public URL onto root and refuses results outside of it.
func below(root, publicURL string) (string, error) {
	p := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(publicURL, "/")))
	if !inside(root, p) {
		return "", fmt.Errorf("public url %q escapes %s", publicURL, root)
	}
	return p, nil
}

// inside reports whether path is strictly below root.
func inside(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// webURL returns the URL of a file inside Public.
func (l Layout) webURL(path string) (string, error) {
	rel, err := filepath.Rel(l.Public, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve public url for %s: %w", path, err)
	}
	return normalizeURL("/" + filepath.ToSlash(rel)), nil
}
