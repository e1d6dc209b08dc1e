package assetpipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Stats represents pipeline statistics.
type Stats struct {
	References     map[Type]int  // Manifest entries per type
	Artifacts      int           // Number of files in the build directory
	TotalSize      int64         // Total size of build artifacts in bytes
	OldestArtifact time.Duration // Age of the oldest artifact
	NewestArtifact time.Duration // Age of the newest artifact
}

// ReferenceCount returns the total number of manifest entries.
func (s Stats) ReferenceCount() int {
	total := 0
	for _, n := range s.References {
		total += n
	}
	return total
}

// Stats returns statistics about the manifest and the build directory.
func (p *Pipeline) Stats() (Stats, error) {
	stats := Stats{References: make(map[Type]int)}
	for _, ref := range p.manifest.References() {
		stats.References[ref.Type]++
	}

	var oldest, newest time.Time
	err := p.walkArtifacts(func(path string, info os.FileInfo) error {
		stats.Artifacts++
		stats.TotalSize += info.Size()

		// Track oldest and newest
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
		if newest.IsZero() || info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	now := p.now()
	if !oldest.IsZero() {
		stats.OldestArtifact = now.Sub(oldest)
	}
	if !newest.IsZero() {
		stats.NewestArtifact = now.Sub(newest)
	}

	return stats, nil
}

// Prune removes build artifacts that no manifest reference maps to,
// bundle variants of a registered reference included.
// Returns the number of artifacts removed.
func (p *Pipeline) Prune() (int, error) {
	expected := make(map[string]bool)
	for _, ref := range p.manifest.References() {
		target, err := p.compiler.BuildPath(ref)
		if err != nil {
			p.logger.Warn("skipping reference with an invalid build path", "asset", ref.Name, "error", err)
			continue
		}
		expected[target] = true
	}

	var toRemove []string
	err := p.walkArtifacts(func(path string, _ os.FileInfo) error {
		clean := filepath.Clean(path)
		if !expected[clean] && !expected[bundleBase(clean)] {
			toRemove = append(toRemove, clean)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, path := range toRemove {
		if err := p.fs.Remove(path); err != nil {
			return count, fmt.Errorf("failed to remove artifact %s: %w", path, err)
		}
		p.logger.Debug("pruned artifact", "path", path)
		count++
	}

	return count, nil
}

// walkArtifacts calls fn for every regular file in the build directory.
// A missing build directory has no artifacts.
func (p *Pipeline) walkArtifacts(fn func(path string, info os.FileInfo) error) error {
	exists, err := afero.DirExists(p.fs, p.layout.Build)
	if err != nil {
		return fmt.Errorf("failed to check build directory: %w", err)
	}
	if !exists {
		return nil
	}

	return afero.Walk(p.fs, p.layout.Build, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if info.IsDir() {
			return nil
		}

		return fn(path, info)
	})
}

// bundleBase strips the bundle suffix added by the compiler:
// "app.1a2b3c4d.js" becomes "app.js". Other paths are returned unchanged.
func bundleBase(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	suffix := filepath.Ext(stem)
	if len(suffix) != 9 || !isHex(suffix[1:]) {
		return path
	}
	return strings.TrimSuffix(stem, suffix) + ext
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return s != ""
}
