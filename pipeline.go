package assetpipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// NowFunc defines a function that returns the current time.
type NowFunc func() time.Time

// Callback runs against a Model right before it is rendered.
type Callback func(m *Model) error

// Pipeline is the entry point of the package. It resolves names through
// the Manifest, discovers missing assets on demand, compiles them and
// renders HTML tags.
type Pipeline struct {
	layout           Layout
	fs               afero.Fs
	hashFunc         HashFunc
	nowFunc          NowFunc
	logger           *log.Logger
	storage          Storage
	minifier         Minifier
	alwaysCompile    bool
	accumulateErrors bool // If true, accumulate all validation errors; if false, fail-fast

	manifest *Manifest
	locator  *Locator
	compiler *Compiler

	mu             sync.RWMutex
	locked         bool
	typeCallbacks  map[Type][]Callback
	assetCallbacks map[string][]Callback
}

// Open creates a pipeline over layout and loads its manifest.
// Without WithStorage the manifest is the JSON file at layout.Manifest.
func Open(ctx context.Context, layout Layout, options ...Option) (*Pipeline, error) {
	p := &Pipeline{
		layout:         layout,
		fs:             afero.NewOsFs(),
		nowFunc:        time.Now,
		hashFunc:       defaultHashFunc,
		logger:         discardLogger(),
		typeCallbacks:  make(map[Type][]Callback),
		assetCallbacks: make(map[string][]Callback),
	}

	// Apply options
	for _, option := range options {
		option(p)
	}

	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	if p.minifier == nil {
		p.minifier = NewMinifier()
	}
	if p.storage == nil {
		if layout.Manifest == "" {
			return nil, errors.New("invalid layout: manifest path is not set")
		}
		p.storage = NewFileStorage(p.fs, layout.Manifest)
	}

	manifest, err := OpenManifest(ctx, p.storage,
		WithManifestLogger(p.logger),
		WithManifestNowFunc(p.nowFunc),
	)
	if err != nil {
		return nil, err
	}
	p.manifest = manifest

	p.locator = NewLocator(p.fs, layout, manifest, p.logger)
	p.locator.accumulateErrors = p.accumulateErrors

	p.compiler = &Compiler{
		fs:            p.fs,
		layout:        layout,
		minifier:      p.minifier,
		nowFunc:       p.nowFunc,
		hashFunc:      p.hashFunc,
		logger:        p.logger,
		alwaysCompile: p.alwaysCompile,
	}

	return p, nil
}

// OpenTemp creates a pipeline on an in-memory filesystem for testing.
func OpenTemp(root string) *Pipeline {
	p, err := Open(context.Background(), DefaultLayout(root), WithFs(afero.NewMemMapFs()))
	if err != nil {
		panic(fmt.Sprintf("failed to create temp pipeline: %v", err))
	}
	return p
}

// Layout returns the directories the pipeline works on.
func (p *Pipeline) Layout() Layout {
	return p.layout
}

// Fs returns the filesystem the pipeline reads and writes.
func (p *Pipeline) Fs() afero.Fs {
	return p.fs
}

// Manifest returns the loaded manifest.
func (p *Pipeline) Manifest() *Manifest {
	return p.manifest
}

// Locator returns the locator used for discovery.
func (p *Pipeline) Locator() *Locator {
	return p.locator
}

// Compiler returns the compiler used for builds and renders.
func (p *Pipeline) Compiler() *Compiler {
	return p.compiler
}

// Resolve returns the reference registered under name.
// On a miss the type is inferred from the first name fragment and that
// type is discovered once before trying again.
func (p *Pipeline) Resolve(name string) (Reference, error) {
	ref, err := p.manifest.Get(name)
	if err == nil {
		return ref, nil
	}

	t, typeErr := typeFromName(name)
	if typeErr != nil {
		return Reference{}, err
	}
	key := canonicalName(t, name)
	if key != name {
		if ref, err := p.manifest.Get(key); err == nil {
			return ref, nil
		}
	}

	p.logger.Warn("asset missing from manifest, running discovery", "asset", key, "type", t)
	if _, discoverErr := p.locator.Discover(t); discoverErr != nil {
		p.logger.Warn("discovery reported problems", "type", t, "error", discoverErr)
	}

	return p.manifest.Get(key)
}

// Model returns the model of name. An empty assetID derives one from the reference.
func (p *Pipeline) Model(name, assetID string) (*Model, error) {
	ref, err := p.Resolve(name)
	if err != nil {
		return nil, err
	}
	return newModel(p, ref, assetID)
}

// HTML renders the tag of name with the given extra attributes.
// Callbacks registered for the type run first, then those for the name.
func (p *Pipeline) HTML(ctx context.Context, name string, attrs map[string]string, opts ...RenderOption) (*HTML, error) {
	m, err := p.Model(name, "")
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	p.mu.RLock()
	callbacks := append([]Callback{}, p.typeCallbacks[m.Type()]...)
	callbacks = append(callbacks, p.assetCallbacks[m.Name()]...)
	p.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(m); err != nil {
			return nil, fmt.Errorf("callback for %s failed: %w", m.Name(), err)
		}
	}

	return m.Render(ctx, attrs)
}

// OnType registers fn for every model of type t.
func (p *Pipeline) OnType(t Type, fn Callback) error {
	if !t.Valid() {
		return &InvalidTypeError{Type: t.String()}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return ErrLocked
	}
	p.typeCallbacks[t] = append(p.typeCallbacks[t], fn)
	return nil
}

// OnAsset registers fn for the model of name.
func (p *Pipeline) OnAsset(name string, fn Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return ErrLocked
	}
	p.assetCallbacks[name] = append(p.assetCallbacks[name], fn)
	return nil
}

// Lock stops further callback registration.
func (p *Pipeline) Lock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = true
}

// Locked reports whether Lock was called.
func (p *Pipeline) Locked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locked
}

// PrepareDirectories creates the layout directories.
func (p *Pipeline) PrepareDirectories() error {
	return p.locator.PrepareDirectories()
}

// Discover registers every asset found for types, all types when none are given.
func (p *Pipeline) Discover(types ...Type) (int, error) {
	return p.locator.Discover(types...)
}

// Commit persists the manifest if it changed.
func (p *Pipeline) Commit(ctx context.Context) (bool, error) {
	return p.manifest.Commit(ctx)
}

// Build compiles the named references, every registered one when names is empty.
func (p *Pipeline) Build(ctx context.Context, names ...string) ([]*Artifact, error) {
	refs := make([]Reference, 0, len(names))
	if len(names) == 0 {
		refs = p.manifest.References()
	}

	var errs []error
	for _, name := range names {
		ref, err := p.Resolve(name)
		if err != nil {
			if !p.accumulateErrors {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		refs = append(refs, ref)
	}

	artifacts := make([]*Artifact, 0, len(refs))
	for _, ref := range refs {
		artifact, err := p.compiler.Compile(ctx, ref)
		if err != nil {
			if !p.accumulateErrors || ctx.Err() != nil {
				return artifacts, err
			}
			errs = append(errs, err)
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, errors.Join(errs...)
}

// Close releases the storage when it holds resources.
func (p *Pipeline) Close() error {
	if c, ok := p.storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// now returns the current time.
func (p *Pipeline) now() time.Time {
	return p.nowFunc()
}

func defaultNowFunc() time.Time {
	return time.Now()
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
