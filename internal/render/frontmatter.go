package render

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Meta holds the frontmatter fields the renderer understands.
type Meta struct {
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	// Revalidate overrides the default freshness horizon for this page, in
	// seconds. Zero means the page is stale as soon as it is generated.
	Revalidate *int `yaml:"revalidate,omitempty"`
}

var frontmatterDelim = []byte("---\n")

// splitFrontmatter separates YAML frontmatter (`---` delimited) from the
// Markdown body. Documents without a leading delimiter pass through whole.
func splitFrontmatter(content []byte) (meta Meta, body []byte, err error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, frontmatterDelim) {
		return Meta{}, normalized, nil
	}

	rest := normalized[len(frontmatterDelim):]
	idx := bytes.Index(rest, []byte("\n---\n"))
	switch {
	case bytes.HasPrefix(rest, []byte("---\n")):
		// Empty frontmatter block.
		return Meta{}, rest[len("---\n"):], nil
	case idx < 0:
		return Meta{}, nil, fmt.Errorf("frontmatter missing closing delimiter")
	}

	raw := rest[:idx+1]
	body = rest[idx+len("\n---\n"):]
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return Meta{}, nil, fmt.Errorf("decode frontmatter: %w", err)
	}
	return meta, body, nil
}
