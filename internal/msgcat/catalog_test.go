package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenderEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Render("session.created", map[string]string{"Code": "ABC123"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Game created. Share code ABC123 with your opponent." {
		t.Fatalf("unexpected rendering: %q", got)
	}

	if _, err := c.Render("move.not_your_turn", nil); err != nil {
		t.Fatalf("static template: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("missing key must error")
	}
}

func TestRenderMissingDataField(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("session.created", map[string]string{}); err == nil {
		t.Fatalf("missing template data must error")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := []byte("move:\n  not_your_turn: \"Wait for your opponent.\"\n")
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), override, 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("move.not_your_turn", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Wait for your opponent." {
		t.Fatalf("override not applied: %q", got)
	}
	// untouched keys keep their defaults
	if _, err := c.Render("move.illegal", nil); err != nil {
		t.Fatalf("default lost after override: %v", err)
	}
}
