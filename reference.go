package assetpipe

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Reference identifies one logical asset: its type, canonical name, public
// URL and the source files it is built from.
// References are created by the Locator and stored in the Manifest.
type Reference struct {
	Type      Type
	Name      string // lower-case.dot.notated, always prefixed by Type
	PublicURL string // relative, always starts with "/"

	sources map[string]string // filename -> absolute path
}

// ReferenceOption configures NewReference.
type ReferenceOption func(*referenceBuilder)

type referenceBuilder struct {
	accumulateErrors bool
}

// withReferenceErrors makes NewReference report every problem instead of
// stopping at the first.
func withReferenceErrors(accumulate bool) ReferenceOption {
	return func(b *referenceBuilder) {
		b.accumulateErrors = accumulate
	}
}

// NewReference validates and builds a Reference.
// Every source must exist on fs; directories contribute their direct
// children that carry one of the type's extensions.
// Problems are reported as a *ValidationError.
func NewReference(fs afero.Fs, t Type, name, publicURL string, sources []string, opts ...ReferenceOption) (Reference, error) {
	b := &referenceBuilder{}
	for _, opt := range opts {
		opt(b)
	}

	var errs []error
	fail := func(err error) bool {
		errs = append(errs, err)
		return !b.accumulateErrors
	}

	if !t.Valid() {
		return Reference{}, newValidationError([]error{&InvalidTypeError{Type: t.String()}})
	}

	ref := Reference{
		Type:    t,
		Name:    canonicalName(t, name),
		sources: make(map[string]string),
	}

	if !validName.MatchString(ref.Name) {
		if fail(fmt.Errorf("asset names may only contain a-z, 0-9, dots and dashes: %q provided", name)) {
			return Reference{}, newValidationError(errs)
		}
	}

	u, err := normalizePublicURL(t, publicURL)
	if err != nil {
		if fail(err) {
			return Reference{}, newValidationError(errs)
		}
	}
	ref.PublicURL = u

	for _, src := range sources {
		if err := ref.addSource(fs, src, false); err != nil {
			if fail(err) {
				return Reference{}, newValidationError(errs)
			}
		}
	}

	if err := newValidationError(errs); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// normalizePublicURL cleans u and checks that it is relative to the site root.
func normalizePublicURL(t Type, u string) (string, error) {
	u = normalizeURL(u)
	if u == "" {
		return "", fmt.Errorf("public url for %s asset is empty", t)
	}
	if strings.Contains(u, "://") || strings.HasPrefix(u, "//") || u[0] != '/' {
		return "", fmt.Errorf("public url must be relative and start with '/': %q", u)
	}
	for _, seg := range strings.Split(u, "/") {
		if seg == ".." {
			return "", fmt.Errorf("public url must not contain '..' segments: %q", u)
		}
	}
	u = path.Clean(u)
	if u == "/" {
		return "", fmt.Errorf("public url for %s asset names no file", t)
	}
	if t == TypeStyle || t == TypeScript {
		if !t.HasExtension(filepathExt(u)) {
			u += t.Extensions()[0]
		}
	}
	return u, nil
}

func filepathExt(u string) string {
	return strings.ToLower(filepath.Ext(u))
}

// AddSource adds path to the reference sources.
// Existing entries with the same filename are kept unless override is set.
func (r *Reference) AddSource(fs afero.Fs, path string, override bool) error {
	if r.sources == nil {
		r.sources = make(map[string]string)
	}
	return r.addSource(fs, path, override)
}

func (r *Reference) addSource(fs afero.Fs, path string, override bool) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("asset %s was provided a non-readable source %s: %w", r.Name, path, err)
	}

	if info.IsDir() {
		entries, err := afero.ReadDir(fs, path)
		if err != nil {
			return fmt.Errorf("asset %s could not read source directory %s: %w", r.Name, path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !r.Type.HasExtension(filepath.Ext(entry.Name())) {
				continue
			}
			if err := r.addSource(fs, filepath.Join(path, entry.Name()), override); err != nil {
				return err
			}
		}
		return nil
	}

	// Probe readability, Stat alone does not catch permission problems.
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("asset %s was provided a non-readable source %s: %w", r.Name, path, err)
	}
	_ = f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve source path %s: %w", path, err)
	}

	key := filepath.Base(path)
	if _, exists := r.sources[key]; exists && !override {
		return nil
	}
	r.sources[key] = abs
	return nil
}

// Sources returns the filename -> path mapping.
func (r Reference) Sources() map[string]string {
	out := make(map[string]string, len(r.sources))
	for k, v := range r.sources {
		out[k] = v
	}
	return out
}

// clone returns a copy of r that shares no state with it.
func (r Reference) clone() Reference {
	c := r
	if r.sources != nil {
		c.sources = r.Sources()
	}
	return c
}

// SourcePaths returns the source paths ordered by filename.
func (r Reference) SourcePaths() []string {
	keys := make([]string, 0, len(r.sources))
	for k := range r.sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	paths := make([]string, len(keys))
	for i, k := range keys {
		paths[i] = r.sources[k]
	}
	return paths
}

// String returns the reference name.
func (r Reference) String() string {
	return r.Name
}

// Equal reports whether two references describe the same asset.
func (r Reference) Equal(other Reference) bool {
	if r.Type != other.Type || r.Name != other.Name || r.PublicURL != other.PublicURL {
		return false
	}
	if len(r.sources) != len(other.sources) {
		return false
	}
	for k, v := range r.sources {
		if other.sources[k] != v {
			return false
		}
	}
	return true
}

// referenceJSON is the persisted form of a Reference.
// encoding/json writes map keys sorted, which keeps sources deterministic.
type referenceJSON struct {
	Type      Type              `json:"type" yaml:"type"`
	Name      string            `json:"name" yaml:"name"`
	PublicURL string            `json:"publicUrl" yaml:"publicUrl"`
	Sources   map[string]string `json:"sources" yaml:"sources"`
}

func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.persisted())
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	var raw referenceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return r.restore(raw)
}

// MarshalYAML renders the reference the same way as its JSON form.
func (r Reference) MarshalYAML() (any, error) {
	return r.persisted(), nil
}

func (r Reference) persisted() referenceJSON {
	return referenceJSON{
		Type:      r.Type,
		Name:      r.Name,
		PublicURL: r.PublicURL,
		Sources:   r.Sources(),
	}
}

func (r *Reference) restore(raw referenceJSON) error {
	if !raw.Type.Valid() {
		return &InvalidTypeError{Type: raw.Type.String()}
	}
	u, err := normalizePublicURL(raw.Type, raw.PublicURL)
	if err != nil {
		return err
	}
	r.Type = raw.Type
	r.Name = canonicalName(raw.Type, raw.Name)
	r.PublicURL = u
	r.sources = make(map[string]string, len(raw.Sources))
	for k, v := range raw.Sources {
		r.sources[k] = v
	}
	return nil
}
