package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMessages(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("rejected.out_of_turn", nil)
	if err != nil || s == "" {
		t.Fatalf("Render: %q %v", s, err)
	}
	s, err = c.Render("notice.game_over.checkmate", map[string]string{"Winner": "White"})
	if err != nil || !strings.Contains(s, "White wins") {
		t.Fatalf("Render checkmate: %q %v", s, err)
	}
	if _, err := c.Render("notice.check", map[string]string{}); err == nil {
		t.Fatalf("missing field should fail")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("rejected:\n  game_full: \"Room is full\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s := c.Text("rejected.game_full", "x", nil); s != "Room is full" {
		t.Fatalf("override not applied: %q", s)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("rejected:\n  game_full: \"dup\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestTextFallback(t *testing.T) {
	var nilCat *Catalog
	if nilCat.Text("rejected.game_full", "fallback", nil) != "fallback" {
		t.Fatalf("nil catalog should fall back")
	}
	c, _ := New("")
	if c.Text("no.such.key", "fb", nil) != "fb" {
		t.Fatalf("unknown key should fall back")
	}
}
