// Package render turns a normalized profile into HTML using the layout the
// tenant selected. Every known layout renders every page; an unknown one
// renders a fixed fallback for all of them.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
)

//go:embed templates
var templateFS embed.FS

// FallbackMessage is shown for every route of a tenant whose template is
// not recognized.
const FallbackMessage = "The template you're looking for does not exist."

const fallbackHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Template not found</title></head>
<body><div class="fallback">` + FallbackMessage + `</div></body>
</html>
`

type pageSet [pageCount]*template.Template

// Dispatcher holds the parsed page templates of every known variant.
type Dispatcher struct {
	template01 pageSet
	template03 pageSet
}

// NewDispatcher parses the embedded templates.
func NewDispatcher() (*Dispatcher, error) {
	t01, err := loadPageSet("template-01")
	if err != nil {
		return nil, err
	}
	t03, err := loadPageSet("template-03")
	if err != nil {
		return nil, err
	}
	return &Dispatcher{template01: t01, template03: t03}, nil
}

var funcs = template.FuncMap{
	"externalURL": externalURL,
	"excerpt":     Excerpt,
	"join":        strings.Join,
}

// loadPageSet parses the shared layout once and clones it per page so each
// page can define its own "title" and "content" blocks.
func loadPageSet(dir string) (pageSet, error) {
	var set pageSet
	base, err := template.New(dir).Funcs(funcs).ParseFS(templateFS, "templates/"+dir+"/layout.tmpl")
	if err != nil {
		return set, fmt.Errorf("parsing %s layout: %w", dir, err)
	}
	for p := PageHome; p < pageCount; p++ {
		clone, err := base.Clone()
		if err != nil {
			return set, fmt.Errorf("cloning %s layout: %w", dir, err)
		}
		t, err := clone.ParseFS(templateFS, "templates/"+dir+"/"+p.String()+".tmpl")
		if err != nil {
			return set, fmt.Errorf("parsing %s/%s: %w", dir, p, err)
		}
		set[p] = t
	}
	return set, nil
}

// Render writes page for variant v. Output is buffered so a template error
// never leaves a half-written page behind.
func (d *Dispatcher) Render(w io.Writer, v Variant, page Page, data PageData) error {
	var set *pageSet
	switch v {
	case Template01:
		set = &d.template01
	case Template03:
		set = &d.template03
	default:
		_, err := io.WriteString(w, fallbackHTML)
		return err
	}

	if page < PageHome || page >= pageCount {
		return fmt.Errorf("unknown page %d", page)
	}

	var buf bytes.Buffer
	if err := set[page].ExecuteTemplate(&buf, "layout", newView(v, page, data)); err != nil {
		return fmt.Errorf("rendering %s/%s: %w", v, page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
