package templates

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestCatalog_List(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "welcome.txt", "hi")
	writeFile(t, dir, "welcome.html", "<p>hi</p>")
	writeFile(t, dir, "report.txt", "report")
	writeFile(t, dir, "notes.md", "ignored")

	choices, err := NewCatalog(dir).List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(choices) != 2 {
		t.Fatalf("expected 2 choices, got %d", len(choices))
	}

	// Ordered by reference.
	if choices[0].Reference != "report.txt" || choices[1].Reference != "welcome.txt" {
		t.Errorf("unexpected order: %+v", choices)
	}
	if choices[0].Label != "report (txt)" {
		t.Errorf("Label = %q, want %q", choices[0].Label, "report (txt)")
	}
	if choices[1].Label != "welcome (txt + html)" {
		t.Errorf("Label = %q, want %q", choices[1].Label, "welcome (txt + html)")
	}
}

func TestCatalog_Render(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet.txt", "hello {{.Name}}")
	writeFile(t, dir, "greet.html", "<b>hello {{.Name}}</b>")
	writeFile(t, dir, "plain.txt", "no html here")

	catalog := NewCatalog(dir)

	text, html, err := catalog.Render("greet.txt", map[string]any{"Name": "Ada"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if text != "hello Ada" {
		t.Errorf("text = %q", text)
	}
	if html != "<b>hello Ada</b>" {
		t.Errorf("html = %q", html)
	}

	text, html, err = catalog.Render("plain.txt", nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if text != "no html here" {
		t.Errorf("text = %q", text)
	}
	if html != "" {
		t.Errorf("expected empty html, got %q", html)
	}

	if _, _, err := catalog.Render("missing.txt", nil); err == nil {
		t.Error("expected error for missing template")
	}
}

func TestCatalog_RejectsEscapingReference(t *testing.T) {
	catalog := NewCatalog(t.TempDir())
	if _, _, err := catalog.Render("../secrets.txt", nil); err == nil {
		t.Error("expected error for reference escaping the root")
	}
	if _, _, err := catalog.Render("/etc/passwd", nil); err == nil {
		t.Error("expected error for absolute reference")
	}
}
