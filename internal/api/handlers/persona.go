package handlers

import (
	"net/http"

	"github.com/VParka/fast-interview-sub002/internal/persona"
)

type PersonaHandler struct {
	personas *persona.Registry
}

func NewPersonaHandler(personas *persona.Registry) *PersonaHandler {
	return &PersonaHandler{personas: personas}
}

// List exposes the interviewer roster so clients can offer a choice
// before starting a session. System prompts stay server-side.
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	type item struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	}

	var out []item
	for _, p := range h.personas.List() {
		out = append(out, item{ID: p.ID, Name: p.Name, Role: p.Role})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"personas": out})
}
