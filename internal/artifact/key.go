package artifact

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// Key identifies one generatable page, derived from a request path and its
// query parameters. Keys are canonical: equivalent requests map to the same key.
type Key string

// NewKey canonicalizes a request path and parameters into a resource key.
//
// The path is cleaned (dot segments removed, duplicate slashes collapsed) and
// parameters are appended in sorted order so parameter ordering in the request
// cannot split the cache.
func NewKey(requestPath string, params url.Values) Key {
	p := path.Clean("/" + strings.TrimSpace(requestPath))

	if len(params) == 0 {
		return Key(p)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(p)
	sep := "?"
	for _, name := range names {
		values := append([]string(nil), params[name]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(sep)
			b.WriteString(url.QueryEscape(name))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(v))
			sep = "&"
		}
	}
	return Key(b.String())
}

// Path returns the path portion of the key (without parameters).
func (k Key) Path() string {
	s := string(k)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	return s
}

// ContentPath maps a key to the markdown file backing it, relative to the
// content root: "/" becomes "index.md", "/guides/setup" becomes
// "guides/setup.md".
func (k Key) ContentPath() string {
	p := strings.TrimPrefix(k.Path(), "/")
	if p == "" {
		return "index.md"
	}
	return p + ".md"
}

// IndexContentPath is the directory-index fallback for non-root keys:
// "/guides" may also be backed by "guides/index.md". Root has no fallback.
func (k Key) IndexContentPath() string {
	p := strings.TrimPrefix(k.Path(), "/")
	if p == "" {
		return ""
	}
	return p + "/index.md"
}

// KeyForContentPath is the inverse of ContentPath, used by the content watcher
// to translate a changed file back into the key it invalidates.
func KeyForContentPath(relPath string) (Key, bool) {
	relPath = strings.TrimPrefix(path.Clean("/"+relPath), "/")
	if !strings.HasSuffix(relPath, ".md") {
		return "", false
	}
	trimmed := strings.TrimSuffix(relPath, ".md")
	if trimmed == "index" {
		return Key("/"), true
	}
	trimmed = strings.TrimSuffix(trimmed, "/index")
	return Key("/" + trimmed), true
}
