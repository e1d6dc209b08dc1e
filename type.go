package assetpipe

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is the kind of a static asset.
type Type int

const (
	TypeStyle Type = iota + 1
	TypeScript
	TypeFont
	TypeImage
	TypeVideo
	TypeDocument
)

type typeInfo struct {
	name       string
	dir        string
	mediaType  string
	extensions []string
}

var types = map[Type]typeInfo{
	TypeStyle:    {name: "style", dir: "styles", mediaType: "text/css", extensions: []string{".css"}},
	TypeScript:   {name: "script", dir: "scripts", mediaType: "application/javascript", extensions: []string{".js", ".mjs"}},
	TypeFont:     {name: "font", dir: "fonts", extensions: []string{".woff2", ".woff", ".ttf", ".otf"}},
	TypeImage:    {name: "image", dir: "images", extensions: []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".ico"}},
	TypeVideo:    {name: "video", dir: "videos", extensions: []string{".mp4", ".webm", ".ogv"}},
	TypeDocument: {name: "document", dir: "documents", extensions: []string{".pdf", ".txt", ".md"}},
}

// Types returns every known type in declaration order.
func Types() []Type {
	return []Type{TypeStyle, TypeScript, TypeFont, TypeImage, TypeVideo, TypeDocument}
}

// ParseType resolves a type from its name ("script"), its directory name
// ("scripts") or one of its extensions ("js", ".js").
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range Types() {
		info := types[t]
		if s == info.name || s == info.dir {
			return t, nil
		}
	}
	if t, ok := TypeForExtension(s); ok {
		return t, nil
	}
	return 0, &InvalidTypeError{Type: s}
}

// TypeForExtension returns the type that registered ext.
func TypeForExtension(ext string) (Type, bool) {
	ext = strings.ToLower(ext)
	if ext == "" {
		return 0, false
	}
	if ext[0] != '.' {
		ext = "." + ext
	}
	for _, t := range Types() {
		for _, e := range types[t].extensions {
			if e == ext {
				return t, true
			}
		}
	}
	return 0, false
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := types[t]
	return ok
}

// String returns the lowercase type name.
func (t Type) String() string {
	if info, ok := types[t]; ok {
		return info.name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Dir returns the directory name used for this type under the assets root.
func (t Type) Dir() string {
	return types[t].dir
}

// MediaType returns the minifier media type, empty for types that are copied as is.
func (t Type) MediaType() string {
	return types[t].mediaType
}

// Extensions returns the registered file extensions, primary first.
func (t Type) Extensions() []string {
	return append([]string(nil), types[t].extensions...)
}

// HasExtension reports whether ext is registered for t.
func (t Type) HasExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range types[t].extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (t Type) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, &InvalidTypeError{Type: t.String()}
	}
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML renders the type as its name.
func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}
