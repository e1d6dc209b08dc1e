package assetpipe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// maxSuggestions caps the names offered by an UndefinedReferenceError.
const maxSuggestions = 3

// Manifest maps canonical asset names to References.
// It is loaded once from its Storage and written back by Commit, only when
// something changed. A Manifest assumes a single writer.
type Manifest struct {
	storage Storage
	logger  *log.Logger
	nowFunc NowFunc

	mu      sync.RWMutex
	doc     *Document
	changed bool
}

// ManifestOption configures a Manifest.
type ManifestOption func(*Manifest)

// WithManifestLogger sets the logger used for commit reports.
func WithManifestLogger(logger *log.Logger) ManifestOption {
	return func(m *Manifest) {
		m.logger = logger
	}
}

// WithManifestNowFunc sets the clock used to stamp commits.
func WithManifestNowFunc(nowFunc NowFunc) ManifestOption {
	return func(m *Manifest) {
		m.nowFunc = nowFunc
	}
}

// OpenManifest loads the manifest held by storage.
func OpenManifest(ctx context.Context, storage Storage, opts ...ManifestOption) (*Manifest, error) {
	m := &Manifest{
		storage: storage,
		logger:  discardLogger(),
		nowFunc: defaultNowFunc,
	}
	for _, opt := range opts {
		opt(m)
	}

	doc, err := storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	if doc.References == nil {
		doc.References = map[string]Reference{}
	}
	m.doc = doc

	return m, nil
}

// Has reports whether name is registered.
func (m *Manifest) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.doc.References[name]
	return ok
}

// Get returns the reference registered under name.
// A miss returns an *UndefinedReferenceError listing close matches.
func (m *Manifest) Get(name string) (Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.doc.References[name]
	if !ok {
		return Reference{}, &UndefinedReferenceError{
			Key:         name,
			Suggestions: suggest(name, m.namesLocked()),
		}
	}
	return ref.clone(), nil
}

// Register stores ref under its name, replacing any previous entry.
// Registering an identical reference does not mark the manifest as changed.
func (m *Manifest) Register(ref Reference) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.doc.References[ref.Name]; ok && prev.Equal(ref) {
		return
	}
	m.doc.References[ref.Name] = ref.clone()
	m.changed = true
}

// Remove deletes name from the manifest.
func (m *Manifest) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.doc.References[name]; !ok {
		return false
	}
	delete(m.doc.References, name)
	m.changed = true
	return true
}

// Names returns every registered name, sorted.
func (m *Manifest) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.namesLocked()
}

func (m *Manifest) namesLocked() []string {
	names := make([]string, 0, len(m.doc.References))
	for name := range m.doc.References {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// References returns all references ordered by name.
func (m *Manifest) References() []Reference {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]Reference, 0, len(m.doc.References))
	for _, name := range m.namesLocked() {
		refs = append(refs, m.doc.References[name].clone())
	}
	return refs
}

// Len returns the number of registered references.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.doc.References)
}

// Revision returns the revision written by the last commit.
func (m *Manifest) Revision() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.doc.Revision
}

// HasChanges reports whether the manifest differs from what storage holds.
func (m *Manifest) HasChanges() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.changed
}

// Commit writes the manifest to storage if it changed since it was loaded
// or last committed. It reports whether a write happened.
func (m *Manifest) Commit(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.changed {
		m.logger.Debug("manifest unchanged, skipping commit", "references", len(m.doc.References))
		return false, nil
	}

	doc := &Document{
		Version:    documentVersion,
		Revision:   uuid.NewString(),
		UpdatedAt:  m.nowFunc().UTC(),
		References: m.doc.References,
	}
	if err := m.storage.Save(ctx, doc); err != nil {
		return false, fmt.Errorf("failed to save manifest: %w", err)
	}

	m.doc = doc
	m.changed = false
	m.logger.Info("manifest committed", "revision", doc.Revision, "references", len(doc.References))
	return true, nil
}

// suggest returns up to maxSuggestions names close to key: names sharing
// the last fragment first, then the nearest by edit distance.
func suggest(key string, names []string) []string {
	if len(names) == 0 {
		return nil
	}

	type candidate struct {
		name  string
		score int
	}

	key = strings.ToLower(key)
	lastFragment := key[strings.LastIndex(key, ".")+1:]
	limit := len(key)/2 + 1

	var candidates []candidate
	for _, name := range names {
		score := editDistance(key, name)
		if lastFragment != "" && strings.HasSuffix(name, "."+lastFragment) {
			score = 0
		}
		if score <= limit {
			candidates = append(candidates, candidate{name: name, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})

	out := make([]string, 0, maxSuggestions)
	for _, c := range candidates {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}

// editDistance is the Levenshtein distance between a and b, byte-wise.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
