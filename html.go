package assetpipe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rawTextEnd matches what would close a script or style element early.
var rawTextEnd = map[string]*regexp.Regexp{
	"script": regexp.MustCompile(`(?i)</(script)`),
	"style":  regexp.MustCompile(`(?i)</(style)`),
}

// escapeRawText rewrites closing tag sequences in inline content as "<\/".
// The escape is a no-op inside JavaScript strings, regexps and CSS strings.
func escapeRawText(tag, text string) string {
	re, ok := rawTextEnd[tag]
	if !ok {
		return text
	}
	return re.ReplaceAllString(text, `<\/$1`)
}

// HTML is a rendered asset tag.
type HTML struct {
	name    string
	assetID string
	t       Type
	markup  string
}

// newHTML renders a single element with attributes in key order.
// Text is written raw, which is only valid for script and style elements.
func newHTML(m *Model, tag string, attrs map[string]string, text string) (*HTML, error) {
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		node.Attr = append(node.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}

	if text != "" {
		node.AppendChild(&html.Node{Type: html.TextNode, Data: escapeRawText(tag, text)})
	}

	var buf strings.Builder
	if err := html.Render(&buf, node); err != nil {
		return nil, fmt.Errorf("failed to render %s tag for %s: %w", tag, m.Name(), err)
	}

	return &HTML{
		name:    m.Name(),
		assetID: m.AssetID(),
		t:       m.Type(),
		markup:  buf.String(),
	}, nil
}

// Name returns the asset name.
func (h *HTML) Name() string { return h.name }

// AssetID returns the asset ID carried by the tag.
func (h *HTML) AssetID() string { return h.assetID }

// Type returns the asset type.
func (h *HTML) Type() Type { return h.t }

// Is reports whether the tag belongs to an asset of type t.
func (h *HTML) Is(t Type) bool { return h.t == t }

// String returns the markup.
func (h *HTML) String() string { return h.markup }
