// Package render turns markdown content into servable HTML page artifacts.
// A Renderer bound to a key is the coordinator's generation function.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
	pserrors "git.home.luguber.info/inful/pagesmith/internal/errors"
	"git.home.luguber.info/inful/pagesmith/internal/source"
)

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .Description}}
<meta name="description" content="{{.Description}}">
{{- end}}
</head>
<body>
<main>
{{.Body}}
</main>
</body>
</html>
`

// Renderer renders markdown files from a content source into HTML artifacts.
type Renderer struct {
	source    source.Source
	md        goldmark.Markdown
	tmpl      *template.Template
	siteTitle string
	titler    cases.Caser
}

// NewRenderer creates a renderer over the given content source.
func NewRenderer(src source.Source, siteTitle string) (*Renderer, error) {
	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &Renderer{
		source:    src,
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		tmpl:      tmpl,
		siteTitle: siteTitle,
		titler:    cases.Title(language.English),
	}, nil
}

// GenerateFor returns a generation function for one resource key, suitable
// for handing to the coordinator.
func (r *Renderer) GenerateFor(key artifact.Key) func(ctx context.Context) (*artifact.Artifact, error) {
	return func(ctx context.Context) (*artifact.Artifact, error) {
		return r.Render(ctx, key)
	}
}

// Render loads, parses and renders the markdown file behind a key.
func (r *Renderer) Render(ctx context.Context, key artifact.Key) (*artifact.Artifact, error) {
	relPath := key.ContentPath()

	raw, err := r.source.Load(ctx, relPath)
	if errors.Is(err, source.ErrNotFound) {
		// Directory-index fallback: /guides may live at guides/index.md.
		if alt := key.IndexContentPath(); alt != "" {
			if altRaw, altErr := r.source.Load(ctx, alt); altErr == nil {
				raw, err, relPath = altRaw, nil, alt
			}
		}
	}
	if err != nil {
		return nil, pserrors.SourceError(err, "load page content").WithContext("path", relPath)
	}

	meta, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, pserrors.RenderError(err, "parse frontmatter").WithContext("path", relPath)
	}

	var rendered bytes.Buffer
	if err := r.md.Convert(body, &rendered); err != nil {
		return nil, pserrors.RenderError(err, "render markdown").WithContext("path", relPath)
	}

	title := meta.Title
	if title == "" {
		title = r.titleFromPath(relPath)
	}
	if r.siteTitle != "" {
		title = title + " · " + r.siteTitle
	}

	var page bytes.Buffer
	err = r.tmpl.Execute(&page, struct {
		Title       string
		Description string
		Body        template.HTML
	}{
		Title:       title,
		Description: meta.Description,
		Body:        template.HTML(rendered.String()),
	})
	if err != nil {
		return nil, pserrors.RenderError(err, "execute page template").WithContext("path", relPath)
	}

	art := &artifact.Artifact{
		Content:     page.Bytes(),
		ContentType: "text/html; charset=utf-8",
	}
	if meta.Revalidate != nil {
		// Zero maps to a negative horizon so the coordinator does not
		// mistake it for "unset": the page is then stale immediately.
		if *meta.Revalidate <= 0 {
			art.Horizon = -1
		} else {
			art.Horizon = time.Duration(*meta.Revalidate) * time.Second
		}
	}
	return art, nil
}

// titleFromPath derives a human title from the file name: "getting-started.md"
// becomes "Getting Started", index files take their directory's name.
func (r *Renderer) titleFromPath(relPath string) string {
	name := strings.TrimSuffix(path.Base(relPath), ".md")
	if name == "index" {
		if dir := path.Base(path.Dir(relPath)); dir != "." && dir != "/" {
			name = dir
		} else {
			name = "Home"
		}
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return r.titler.String(name)
}
