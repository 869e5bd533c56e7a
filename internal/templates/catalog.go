// Package templates implements the notification template catalog: a directory
// of *.txt templates, each with an optional .html counterpart rendered as the
// HTML alternative of the same notification.
package templates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	texttemplate "text/template"
)

// Choice is one catalog entry offered to rule authors. Reference is the
// template's path relative to the catalog root.
type Choice struct {
	Reference string `json:"reference"`
	Label     string `json:"label"`
}

// Catalog lists and renders the templates under one root directory.
type Catalog struct {
	dir string
}

// NewCatalog creates a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// List returns the available templates ordered by reference. A template is a
// *.txt file; its label is "<name> (txt + html)" when an .html counterpart
// exists alongside it, else "<name> (txt)".
func (c *Catalog) List() ([]Choice, error) {
	var choices []Choice
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		ref, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(d.Name(), ".txt")
		label := name + " (txt)"
		if _, err := os.Stat(htmlCounterpart(path)); err == nil {
			label = name + " (txt + html)"
		}
		choices = append(choices, Choice{Reference: filepath.ToSlash(ref), Label: label})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing templates in %s: %w", c.dir, err)
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Reference < choices[j].Reference })
	return choices, nil
}

// Render executes the referenced text template with data and, when an .html
// counterpart exists, the HTML alternative too. A missing counterpart is not
// an error; htmlBody comes back empty.
func (c *Catalog) Render(reference string, data any) (textBody, htmlBody string, err error) {
	path, err := c.resolve(reference)
	if err != nil {
		return "", "", err
	}

	textTmpl, err := texttemplate.ParseFiles(path)
	if err != nil {
		return "", "", fmt.Errorf("parsing template %s: %w", reference, err)
	}
	var textBuf bytes.Buffer
	if err := textTmpl.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("rendering template %s: %w", reference, err)
	}

	htmlPath := htmlCounterpart(path)
	if _, statErr := os.Stat(htmlPath); statErr == nil {
		htmlTmpl, err := htmltemplate.ParseFiles(htmlPath)
		if err != nil {
			return "", "", fmt.Errorf("parsing html counterpart of %s: %w", reference, err)
		}
		var htmlBuf bytes.Buffer
		if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
			return "", "", fmt.Errorf("rendering html counterpart of %s: %w", reference, err)
		}
		htmlBody = htmlBuf.String()
	}

	return textBuf.String(), htmlBody, nil
}

// resolve maps a reference to a path under the catalog root, rejecting
// references that escape it.
func (c *Catalog) resolve(reference string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(reference))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("template reference %q escapes the catalog root", reference)
	}
	return filepath.Join(c.dir, cleaned), nil
}

func htmlCounterpart(txtPath string) string {
	return strings.TrimSuffix(txtPath, ".txt") + ".html"
}
