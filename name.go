package assetpipe

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// assetsBoundary is the directory name that separates the project prefix
// from the part of a path that contributes to an asset name.
const assetsBoundary = "assets"

var (
	hyphenRun  = regexp.MustCompile(`[\s_]+`)
	validName  = regexp.MustCompile(`^[a-z0-9.-]+$`)
	slashesRun = regexp.MustCompile(`/{2,}`)
)

// GenerateName derives the canonical dot-notated name for a file path.
//
//	GenerateName(TypeScript, "/srv/app/assets/scripts/admin/user_list.js") // "script.admin.user-list"
//	GenerateName(TypeStyle, "style.main")                                  // "style.main"
//
// The result always starts with the type name and is stable: passing it
// back in returns it unchanged. Input that already starts with the type
// name keeps its last fragment even when it looks like an extension.
func GenerateName(t Type, from string) string {
	p := norm.NFC.String(strings.TrimSpace(from))
	p = strings.ReplaceAll(p, `\`, "/")
	isPath := strings.Contains(p, "/")
	named := !isPath && strings.HasPrefix(strings.ToLower(p), t.String()+".")

	segments := strings.Split(p, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if strings.EqualFold(segments[i], assetsBoundary) {
			segments = segments[i+1:]
			break
		}
	}

	segs := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return t.String()
	}

	last := segs[len(segs)-1]
	if ext := path.Ext(last); ext != "" && ext != last && !named {
		if _, registered := TypeForExtension(ext); isPath || registered {
			segs[len(segs)-1] = strings.TrimSuffix(last, ext)
		}
	}

	if len(segs) > 1 {
		if first := strings.ToLower(segs[0]); first == t.String() || first == t.Dir() {
			segs = segs[1:]
		}
	}

	joined := hyphenRun.ReplaceAllString(strings.Join(segs, "."), "-")
	return canonicalName(t, joined)
}

// canonicalName lowercases name, drops empty fragments, and makes sure the
// first fragment is the type name. A plural directory prefix ("scripts")
// is folded into the singular.
func canonicalName(t Type, name string) string {
	name = strings.ToLower(strings.Trim(name, "."))

	fragments := make([]string, 0, strings.Count(name, ".")+2)
	for _, f := range strings.Split(name, ".") {
		if f != "" {
			fragments = append(fragments, f)
		}
	}

	switch {
	case len(fragments) == 0:
		return t.String()
	case fragments[0] == t.String():
	case fragments[0] == t.Dir():
		fragments[0] = t.String()
	default:
		fragments = append([]string{t.String()}, fragments...)
	}

	return strings.Join(fragments, ".")
}

// typeFromName infers the type from the first fragment of a dot-notated name.
func typeFromName(name string) (Type, error) {
	first, _, _ := strings.Cut(strings.ToLower(name), ".")
	return ParseType(first)
}

// normalizeURL turns backslashes into slashes and collapses slash runs.
func normalizeURL(u string) string {
	u = strings.ReplaceAll(strings.TrimSpace(u), `\`, "/")
	if strings.Contains(u, "://") {
		return u
	}
	if strings.HasPrefix(u, "//") {
		// protocol-relative, keep it recognisable so validation rejects it
		return "//" + slashesRun.ReplaceAllString(strings.TrimLeft(u, "/"), "/")
	}
	return slashesRun.ReplaceAllString(u, "/")
}
