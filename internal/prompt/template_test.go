package prompt

import (
	"reflect"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out, err := Render("Hi {{name}}, you applied for {{position}}.", map[string]string{
		"name":     "Dana",
		"position": "Backend Engineer",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Hi Dana, you applied for Backend Engineer." {
		t.Fatalf("out = %q", out)
	}
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Render("Hi {{name}}, {{greeting}}", map[string]string{"name": "Dana"})
	if err == nil {
		t.Fatal("missing variable did not error")
	}
	if !strings.Contains(err.Error(), "greeting") {
		t.Fatalf("error does not name the missing variable: %v", err)
	}
}

func TestRenderLenientBlanksUnknowns(t *testing.T) {
	out := RenderLenient("Role: {{role}}. Context: {{context}}", map[string]string{"role": "SRE"})
	if out != "Role: SRE. Context: " {
		t.Fatalf("out = %q", out)
	}
}

func TestExtractVariables(t *testing.T) {
	vars := ExtractVariables("{{b}} then {{a}} then {{b}} again, not {single}")
	if !reflect.DeepEqual(vars, []string{"b", "a"}) {
		t.Fatalf("vars = %v", vars)
	}
}

func TestExtractVariablesNone(t *testing.T) {
	if vars := ExtractVariables("plain text"); vars != nil {
		t.Fatalf("vars = %v, want nil", vars)
	}
}
