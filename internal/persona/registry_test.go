package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryLoadsEmbeddedDefaults(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if len(r.List()) == 0 {
		t.Fatal("no embedded personas")
	}
	for _, p := range r.List() {
		if p.ID == "" || p.SystemPrompt == "" {
			t.Fatalf("persona %q missing id or prompt", p.Name)
		}
	}
}

func TestRegistryDefaultIsFirst(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Default().ID != r.List()[0].ID {
		t.Fatalf("default = %s, first = %s", r.Default().ID, r.List()[0].ID)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := r.Get("no-such-persona"); err == nil {
		t.Fatal("unknown persona did not error")
	}
}

func TestRegistryOverrideFile(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	firstID := r.Default().ID

	override := `personas:
  - id: ` + firstID + `
    name: Overridden
    role: Custom Interviewer
    system_prompt: "You are {{name}}."
  - id: custom-extra
    name: Extra
    role: Panel Member
    system_prompt: "Ask about {{position}}."
`
	path := filepath.Join(t.TempDir(), "personas.yaml")
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	r2, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("NewRegistry with override: %v", err)
	}

	// Same ID replaces the embedded persona but keeps its position.
	got, err := r2.Get(firstID)
	if err != nil {
		t.Fatalf("Get(%s): %v", firstID, err)
	}
	if got.Name != "Overridden" {
		t.Fatalf("name = %s, want Overridden", got.Name)
	}
	if r2.Default().ID != firstID {
		t.Fatalf("default changed to %s", r2.Default().ID)
	}

	if _, err := r2.Get("custom-extra"); err != nil {
		t.Fatalf("extra persona missing: %v", err)
	}
	if len(r2.List()) != len(r.List())+1 {
		t.Fatalf("list = %d, want %d", len(r2.List()), len(r.List())+1)
	}
}

func TestRegistryRejectsInvalidPersona(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	bad := `personas:
  - name: No ID
    system_prompt: "hi"
`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRegistry(path); err == nil {
		t.Fatal("persona without id accepted")
	}
}
