/*
Package assetpipe resolves logical asset names to files, compiles them and renders the HTML tags that reference them.

# Overview

Templates refer to assets by name (script.app, style.main, image.logo). assetpipe keeps a
persisted manifest mapping each name to a reference (type, public URL, source files), compiles
the sources into a build directory, publishes the result below the public web root, and emits the
matching <script>, <link>, <style> or <img> tag.

# Core Architecture

A project follows a Layout:
  - assets/ - Sources, one directory per type (styles/, scripts/, images/, ...)
  - public/assets/ - Published files, served by the web server
  - var/build/ - Compiled artifacts, reused while fresh
  - var/asset-manifest.json - The manifest

Compilation is incremental: an artifact is rebuilt only when a source was modified after the
artifact was written.

# Key Features

  - Discovery: Scans the assets directories and registers every asset under a generated name
  - On-demand discovery: A missing name triggers one discovery of its type before failing
  - Minification: CSS and JavaScript through tdewolff/minify, pluggable via Minifier
  - Storage: JSON file by default, SQLite via SQLiteStorage
  - Callbacks: Per type and per asset hooks that run before rendering

# Basic Usage

Opening a pipeline:

	p, err := assetpipe.Open(ctx, assetpipe.DefaultLayout("."))
	if err != nil {
	    log.Fatalf("Failed to open pipeline: %v", err)
	}
	defer p.Close()

Discovering assets and saving the manifest:

	if _, err := p.Discover(); err != nil {
	    log.Printf("Some assets were skipped: %v", err)
	}
	if _, err := p.Commit(ctx); err != nil {
	    log.Fatalf("Failed to save manifest: %v", err)
	}

Rendering a tag:

	tag, err := p.HTML(ctx, "script.app", map[string]string{"defer": ""})
	if err != nil {
	    log.Fatalf("Failed to render: %v", err)
	}
	fmt.Println(tag)
	// <script asset-id="..." asset-name="script.app" defer="" src="/assets/scripts/app.js?v=1583020800"></script>

Inline rendering and bundling:

	tag, err := p.HTML(ctx, "style.main", nil,
	    assetpipe.RenderInline(),
	    assetpipe.RenderBundle(true, "vendor/reset.css"),
	)

# Names

GenerateName derives a name from a path: the part after the last assets directory, without its
extension, with the type directory dropped, joined with dots and prefixed with the type name.

	assetpipe.GenerateName(assetpipe.TypeScript, "/srv/assets/scripts/admin/users.js") // script.admin.users

# Errors

Manifest misses return an *UndefinedReferenceError with suggestions, empty compiled output an
*EmptyAssetError and non-renderable types an *InvalidTypeError. Each matches its sentinel with
errors.Is:

	if errors.Is(err, assetpipe.ErrUndefinedReference) {
	    // run discovery
	}

# Testing

Use WithFs(afero.NewMemMapFs()) and WithNowFunc for deterministic tests, or OpenTemp.
*/
package assetpipe
