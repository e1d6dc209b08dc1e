package assetpipe

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Artifact is the compiled output of one reference.
type Artifact struct {
	Name    string    // reference name
	Path    string    // file in the build directory
	Content []byte    // compiled bytes
	Hash    string    // hex digest of Content
	ModTime time.Time // modification time of Path
	Reused  bool      // true when the existing build file was fresh
}

// Compiler turns references into build artifacts. An artifact is rebuilt
// only when one of its sources was modified after the artifact was written.
type Compiler struct {
	fs            afero.Fs
	layout        Layout
	minifier      Minifier
	nowFunc       NowFunc
	hashFunc      HashFunc
	logger        *log.Logger
	alwaysCompile bool
}

// CompileOption adjusts a single Compile call.
type CompileOption func(*compileRequest)

type compileRequest struct {
	before []string
	after  []string
}

// Prepend bundles paths before the reference sources.
func Prepend(paths ...string) CompileOption {
	return func(r *compileRequest) {
		r.before = append(r.before, paths...)
	}
}

// Append bundles paths after the reference sources.
func Append(paths ...string) CompileOption {
	return func(r *compileRequest) {
		r.after = append(r.after, paths...)
	}
}

// Compile returns the artifact for ref, reusing the build file when its
// modification time is newer than every source.
func (c *Compiler) Compile(ctx context.Context, ref Reference, opts ...CompileOption) (*Artifact, error) {
	req := &compileRequest{}
	for _, opt := range opts {
		opt(req)
	}

	sources := make([]string, 0, len(req.before)+len(ref.sources)+len(req.after))
	sources = append(sources, req.before...)
	sources = append(sources, ref.SourcePaths()...)
	sources = append(sources, req.after...)
	if len(sources) == 0 {
		return nil, &EmptyAssetError{Name: ref.Name}
	}

	var newest time.Time
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := c.fs.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("asset %s: source %s is not readable: %w", ref.Name, src, err)
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}

	target, err := c.artifactPath(ref, req)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", ref.Name, err)
	}

	if !c.alwaysCompile {
		if artifact, ok := c.reuse(ref, target, newest); ok {
			return artifact, nil
		}
	}

	content, err := c.build(ref, sources)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, &EmptyAssetError{Name: ref.Name}
	}

	now := c.nowFunc()
	if err := writeStamped(c.fs, target, content, now); err != nil {
		return nil, fmt.Errorf("asset %s: %w", ref.Name, err)
	}
	c.logger.Info("compiled asset", "asset", ref.Name, "path", target, "sources", len(sources), "bytes", len(content))

	return &Artifact{
		Name:    ref.Name,
		Path:    target,
		Content: content,
		Hash:    c.digest(content),
		ModTime: now,
	}, nil
}

// reuse returns the existing artifact when it is newer than newest.
func (c *Compiler) reuse(ref Reference, target string, newest time.Time) (*Artifact, bool) {
	info, err := c.fs.Stat(target)
	if err != nil || !info.ModTime().After(newest) {
		return nil, false
	}
	content, err := afero.ReadFile(c.fs, target)
	if err != nil || len(content) == 0 {
		c.logger.Warn("unreadable build artifact, recompiling", "asset", ref.Name, "path", target, "error", err)
		return nil, false
	}
	c.logger.Debug("reusing build artifact", "asset", ref.Name, "path", target)
	return &Artifact{
		Name:    ref.Name,
		Path:    target,
		Content: content,
		Hash:    c.digest(content),
		ModTime: info.ModTime(),
		Reused:  true,
	}, true
}

// build concatenates sources in order and minifies the result. Types
// without a media type are copied from their first source.
func (c *Compiler) build(ref Reference, sources []string) ([]byte, error) {
	mediaType := ref.Type.MediaType()
	if mediaType == "" {
		content, err := afero.ReadFile(c.fs, sources[0])
		if err != nil {
			return nil, fmt.Errorf("asset %s: failed to read %s: %w", ref.Name, sources[0], err)
		}
		return content, nil
	}

	var buf bytes.Buffer
	for i, src := range sources {
		data, err := afero.ReadFile(c.fs, src)
		if err != nil {
			return nil, fmt.Errorf("asset %s: failed to read %s: %w", ref.Name, src, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}

	out, err := c.minifier.Minify(mediaType, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", ref.Name, err)
	}
	return out, nil
}

// artifactPath mirrors the public URL below the build directory. Bundles
// with extra sources get their own file so they never shadow the plain build.
func (c *Compiler) artifactPath(ref Reference, req *compileRequest) (string, error) {
	target, err := c.layout.buildPath(ref.PublicURL)
	if err != nil || len(req.before) == 0 && len(req.after) == 0 {
		return target, err
	}

	parts := append([]string{"before"}, req.before...)
	parts = append(parts, "after")
	parts = append(parts, req.after...)
	suffix := hashKey(c.hashFunc(), parts...)[:8]

	ext := path.Ext(target)
	return strings.TrimSuffix(target, ext) + "." + suffix + ext, nil
}

func (c *Compiler) digest(content []byte) string {
	h := c.hashFunc()
	if err := hashContent(bytes.NewReader(content), h); err != nil {
		return ""
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// BuildPath returns where the artifact of ref is written.
func (c *Compiler) BuildPath(ref Reference) (string, error) {
	return c.layout.buildPath(ref.PublicURL)
}
