package assetpipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Locator finds asset files below a Layout and registers each one as a
// Reference in a Manifest. It never modifies source files or writes
// compiled output.
type Locator struct {
	fs               afero.Fs
	layout           Layout
	manifest         *Manifest
	logger           *log.Logger
	accumulateErrors bool
}

// NewLocator returns a Locator that registers into manifest.
func NewLocator(fs afero.Fs, layout Layout, manifest *Manifest, logger *log.Logger) *Locator {
	if logger == nil {
		logger = discardLogger()
	}
	return &Locator{fs: fs, layout: layout, manifest: manifest, logger: logger}
}

// PrepareDirectories creates every missing type directory and the public
// assets directory. A path that exists as a regular file is an error.
func (l *Locator) PrepareDirectories() error {
	dirs := []string{l.layout.Assets, l.layout.PublicAssets, l.layout.Build}
	for _, t := range Types() {
		dirs = append(dirs, l.layout.TypeDir(t))
	}

	var errs []error
	for _, dir := range dirs {
		info, err := l.fs.Stat(dir)
		switch {
		case err == nil && !info.IsDir():
			errs = append(errs, fmt.Errorf("invalid asset directory %s: is a file", dir))
		case err == nil:
			continue
		case os.IsNotExist(err):
			if err := l.fs.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Errorf("failed to create asset directory %s: %w", dir, err))
			} else {
				l.logger.Debug("created asset directory", "dir", dir)
			}
		default:
			errs = append(errs, fmt.Errorf("failed to check asset directory %s: %w", dir, err))
		}
		if len(errs) > 0 && !l.accumulateErrors {
			break
		}
	}
	return newValidationError(errs)
}

// Discover scans the given types (all of them when none are given) and
// registers every reference found, replacing older entries of the same name.
// It returns the number of references found. Files that cannot become a
// reference are skipped and reported in the returned error.
func (l *Locator) Discover(types ...Type) (int, error) {
	refs, err := l.Scan(types...)
	for _, ref := range refs {
		l.manifest.Register(ref)
	}
	l.logger.Debug("discovery finished", "types", typeNames(types), "found", len(refs))
	return len(refs), err
}

// Scan returns the references found for the given types without touching
// the manifest. Results are ordered by name. When two files map to the same
// name the first one scanned is kept (stylesheets before style directories,
// images in walk order) and the other is reported.
func (l *Locator) Scan(types ...Type) ([]Reference, error) {
	if len(types) == 0 {
		types = Types()
	}

	var (
		found []Reference
		errs  []error
		seen  = make(map[string]Reference)
	)
	for _, t := range types {
		if !t.Valid() {
			return nil, &InvalidTypeError{Type: t.String()}
		}

		dir := l.layout.TypeDir(t)
		exists, err := afero.DirExists(l.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s directory: %w", t, err)
		}
		if !exists {
			l.logger.Debug("asset directory missing, nothing to scan", "type", t, "dir", dir)
			continue
		}

		var refs []Reference
		switch t {
		case TypeScript:
			refs, err = l.scanFiles(t, dir)
		case TypeStyle:
			refs, err = l.scanStyles(dir)
		case TypeImage:
			refs, err = l.scanImages(dir)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
		for _, ref := range refs {
			if kept, dup := seen[ref.Name]; dup {
				l.logger.Warn("skipping asset with a duplicate name", "asset", ref.Name, "kept", sourceList(kept), "skipped", sourceList(ref))
				errs = append(errs, fmt.Errorf("%s: asset %s is already provided by %s", sourceList(ref), ref.Name, sourceList(kept)))
				continue
			}
			seen[ref.Name] = ref
			found = append(found, ref)
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, joinScanErrors(errs)
}

// scanFiles returns one reference per direct child of dir with an extension of t.
func (l *Locator) scanFiles(t Type, dir string) ([]Reference, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var (
		refs []Reference
		errs []error
	)
	for _, entry := range entries {
		if entry.IsDir() || !t.HasExtension(filepath.Ext(entry.Name())) {
			continue
		}
		ref, err := l.reference(t, filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, joinScanErrors(errs)
}

// scanStyles finds direct stylesheets plus one bundled reference per
// direct sub directory.
func (l *Locator) scanStyles(dir string) ([]Reference, error) {
	refs, err := l.scanFiles(TypeStyle, dir)
	errs := []error{err}

	entries, readErr := afero.ReadDir(l.fs, dir)
	if readErr != nil {
		return refs, fmt.Errorf("failed to read %s: %w", dir, readErr)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ref, err := l.reference(TypeStyle, filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(ref.sources) == 0 {
			l.logger.Debug("style directory has no stylesheets", "dir", entry.Name())
			continue
		}
		refs = append(refs, ref)
	}
	return refs, joinScanErrors(errs)
}

// scanImages walks dir recursively and keeps files with a registered image extension.
func (l *Locator) scanImages(dir string) ([]Reference, error) {
	var (
		refs []Reference
		errs []error
	)
	err := afero.Walk(l.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !TypeImage.HasExtension(filepath.Ext(path)) {
			l.logger.Error("invalid asset type when scanning images", "path", path, "ext", filepath.Ext(path))
			return nil
		}
		ref, err := l.reference(TypeImage, path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return refs, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return refs, joinScanErrors(errs)
}

// reference builds the Reference for a file or style directory at path.
func (l *Locator) reference(t Type, path string) (Reference, error) {
	rel, err := l.layout.assetsRelative(path)
	if err != nil {
		return Reference{}, err
	}

	ref, err := NewReference(l.fs, t, GenerateName(t, rel), rel, []string{path}, withReferenceErrors(l.accumulateErrors))
	if err != nil {
		l.logger.Error("skipping asset", "path", path, "error", err)
		return Reference{}, fmt.Errorf("%s: %w", path, err)
	}
	return ref, nil
}

func sourceList(ref Reference) string {
	return strings.Join(ref.SourcePaths(), ", ")
}

func joinScanErrors(errs []error) error {
	var kept []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if ve, ok := err.(*ValidationError); ok {
			kept = append(kept, ve.Errors...)
			continue
		}
		kept = append(kept, err)
	}
	return newValidationError(kept)
}

func typeNames(types []Type) []string {
	if len(types) == 0 {
		return []string{"all"}
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
