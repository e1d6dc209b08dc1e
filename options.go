package assetpipe

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Option defines a function that configures a Pipeline.
type Option func(*Pipeline)

// WithFs sets a custom filesystem for the pipeline.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	p, err := assetpipe.Open(ctx, layout, assetpipe.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
	}
}

// WithHashFunc sets the hash used for asset IDs and artifact digests.
// The default is xxHash64.
//
// Note: Changing the hash function changes every generated asset ID.
func WithHashFunc(hashFunc HashFunc) Option {
	return func(p *Pipeline) {
		p.hashFunc = hashFunc
	}
}

// WithNowFunc sets a custom time function.
// This is primarily useful for testing with deterministic timestamps.
func WithNowFunc(nowFunc NowFunc) Option {
	return func(p *Pipeline) {
		p.nowFunc = nowFunc
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithStorage replaces the JSON manifest file with another Storage.
func WithStorage(storage Storage) Option {
	return func(p *Pipeline) {
		p.storage = storage
	}
}

// WithMinifier replaces the default CSS/JS minifier.
func WithMinifier(minifier Minifier) Option {
	return func(p *Pipeline) {
		p.minifier = minifier
	}
}

// WithAlwaysCompile disables reuse of fresh build artifacts.
func WithAlwaysCompile() Option {
	return func(p *Pipeline) {
		p.alwaysCompile = true
	}
}

// WithAccumulateErrors configures the pipeline to accumulate all validation
// errors instead of stopping at the first one (fail-fast).
//
// It applies to reference construction during discovery, directory
// preparation and Build. This is useful during development to see all
// problems at once.
//
// Example:
//
//	p, err := assetpipe.Open(ctx, layout, assetpipe.WithAccumulateErrors())
func WithAccumulateErrors() Option {
	return func(p *Pipeline) {
		p.accumulateErrors = true
	}
}
