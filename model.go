package assetpipe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
)

// RenderOption adjusts a Model before it is rendered by Pipeline.HTML.
type RenderOption func(m *Model) error

// RenderInline embeds style and script content in the tag.
func RenderInline() RenderOption {
	return func(m *Model) error {
		m.Inline(true)
		return nil
	}
}

// RenderID replaces the derived asset ID.
func RenderID(id string) RenderOption {
	return func(m *Model) error {
		return m.SetAssetID(id)
	}
}

// RenderBundle adds extra source files before or after the reference sources.
func RenderBundle(before bool, paths ...string) RenderOption {
	return func(m *Model) error {
		for _, path := range paths {
			if err := m.AddSource(path, before); err != nil {
				return err
			}
		}
		return nil
	}
}

// Model is the renderable view of a Reference. Models are short lived:
// sources added to a model apply to its own render only.
type Model struct {
	pipeline *Pipeline
	ref      Reference
	assetID  string
	inline   bool
	before   []string
	after    []string
}

func newModel(p *Pipeline, ref Reference, assetID string) (*Model, error) {
	m := &Model{pipeline: p, ref: ref}
	if assetID == "" {
		m.assetID = m.deriveAssetID()
		return m, nil
	}
	if err := m.SetAssetID(assetID); err != nil {
		return nil, err
	}
	return m, nil
}

// deriveAssetID hashes the model kind, name, type and source paths.
func (m *Model) deriveAssetID() string {
	parts := []string{"model:" + m.ref.Type.String(), m.ref.Name, m.ref.Type.String()}
	parts = append(parts, m.ref.SourcePaths()...)
	return hashKey(m.pipeline.hashFunc(), parts...)
}

// SetAssetID replaces the asset ID. It must be 16 alphanumeric characters.
func (m *Model) SetAssetID(id string) error {
	if !validAssetID(id) {
		return fmt.Errorf("invalid asset id %q for %s: expected %d alphanumeric characters", id, m.ref.Name, assetIDLength)
	}
	m.assetID = id
	return nil
}

// Reference returns the underlying reference.
func (m *Model) Reference() Reference { return m.ref }

// Name returns the asset name.
func (m *Model) Name() string { return m.ref.Name }

// Type returns the asset type.
func (m *Model) Type() Type { return m.ref.Type }

// AssetID returns the asset ID.
func (m *Model) AssetID() string { return m.assetID }

// Inline toggles inline rendering. Only styles and scripts can be inlined.
func (m *Model) Inline(inline bool) { m.inline = inline }

// IsInline reports whether the model renders inline.
func (m *Model) IsInline() bool { return m.inline }

// PublicPath returns where the rendered file lives on disk.
func (m *Model) PublicPath() (string, error) {
	return m.pipeline.layout.publicPath(m.ref.PublicURL)
}

// PublicURL returns the URL of the rendered file relative to the web root.
func (m *Model) PublicURL() (string, error) {
	p, err := m.PublicPath()
	if err != nil {
		return "", err
	}
	return m.pipeline.layout.webURL(p)
}

// Version returns the cache busting query string for the public file.
func (m *Model) Version() string {
	p, err := m.PublicPath()
	if err != nil {
		return "?v=" + m.assetID
	}
	return m.version(p)
}

func (m *Model) version(path string) string {
	info, err := m.pipeline.fs.Stat(path)
	if err != nil {
		return "?v=" + m.assetID
	}
	return "?v=" + strconv.FormatInt(info.ModTime().Unix(), 10)
}

// AddSource bundles path with this render, before or after the reference sources.
func (m *Model) AddSource(path string, before bool) error {
	info, err := m.pipeline.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("asset %s was provided a non-readable source %s: %w", m.ref.Name, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("asset %s: bundled source %s is a directory", m.ref.Name, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve source path %s: %w", path, err)
	}
	if before {
		m.before = append(m.before, abs)
	} else {
		m.after = append(m.after, abs)
	}
	return nil
}

// Render compiles the asset, publishes it and returns its tag.
// Extra attributes are merged with the generated ones, which win.
func (m *Model) Render(ctx context.Context, attrs map[string]string) (*HTML, error) {
	switch m.ref.Type {
	case TypeStyle, TypeScript, TypeImage:
	default:
		return nil, &InvalidTypeError{Type: m.ref.Type.String(), Reason: "cannot be rendered"}
	}

	artifact, err := m.pipeline.compiler.Compile(ctx, m.ref, Prepend(m.before...), Append(m.after...))
	if err != nil {
		var empty *EmptyAssetError
		if errors.As(err, &empty) {
			empty.AssetID = m.assetID
		}
		return nil, err
	}

	tagAttrs := make(map[string]string, len(attrs)+4)
	for k, v := range attrs {
		tagAttrs[k] = v
	}
	tagAttrs["asset-name"] = m.ref.Name
	tagAttrs["asset-id"] = m.assetID

	if m.inline && m.ref.Type != TypeImage {
		tag := "script"
		if m.ref.Type == TypeStyle {
			tag = "style"
		}
		return newHTML(m, tag, tagAttrs, string(artifact.Content))
	}

	url, err := m.publish(artifact)
	if err != nil {
		return nil, err
	}

	switch m.ref.Type {
	case TypeStyle:
		tagAttrs["rel"] = "stylesheet"
		tagAttrs["href"] = url
		return newHTML(m, "link", tagAttrs, "")
	case TypeScript:
		tagAttrs["src"] = url
		return newHTML(m, "script", tagAttrs, "")
	default:
		if _, ok := tagAttrs["alt"]; !ok {
			tagAttrs["alt"] = ""
		}
		tagAttrs["src"] = url
		return newHTML(m, "img", tagAttrs, "")
	}
}

// publish mirrors the artifact below the public assets directory and
// returns its versioned URL. The public file carries the artifact mtime.
func (m *Model) publish(artifact *Artifact) (string, error) {
	layout := m.pipeline.layout
	rel, err := filepath.Rel(layout.Build, artifact.Path)
	if err != nil {
		return "", fmt.Errorf("asset %s: %w", m.ref.Name, err)
	}
	target := filepath.Join(layout.PublicAssets, rel)
	if !inside(layout.Build, artifact.Path) || !inside(layout.PublicAssets, target) {
		return "", fmt.Errorf("asset %s: artifact %s is outside the build directory", m.ref.Name, artifact.Path)
	}

	if !m.published(target, artifact) {
		if m.ref.Type == TypeImage {
			err = copyFile(m.pipeline.fs, artifact.Path, target)
		} else {
			err = writeStamped(m.pipeline.fs, target, artifact.Content, artifact.ModTime)
		}
		if err != nil {
			return "", fmt.Errorf("failed to publish asset %s: %w", m.ref.Name, err)
		}
		m.pipeline.logger.Debug("published asset", "asset", m.ref.Name, "path", target)
	}

	url, err := layout.webURL(target)
	if err != nil {
		return "", err
	}
	return url + m.version(target), nil
}

// published reports whether target already holds the artifact.
func (m *Model) published(target string, artifact *Artifact) bool {
	info, err := m.pipeline.fs.Stat(target)
	if err != nil {
		return false
	}
	return artifact.Reused && info.ModTime().Equal(artifact.ModTime) && info.Size() == int64(len(artifact.Content))
}
