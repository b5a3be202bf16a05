package infrastructure

import (
	"fmt"
	"sigma_ai/internal/interfaces"
	"strings"
)

// ContextPrompt flattens a multi-turn request into one prompt for vendors that only
// accept a single string.
func ContextPrompt(req interfaces.ChatRequest) string {
	if req.ImageURL != "" {
		return "Analiza esta imagen y responde: " + req.Prompt
	}
	if len(req.History) == 0 {
		return req.Prompt
	}

	var sb strings.Builder
	sb.WriteString("Contexto de conversación:\n")
	for _, turn := range req.History {
		sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
	}
	sb.WriteString("\nUsuario: ")
	sb.WriteString(req.Prompt)
	sb.WriteString("\nAsistente:")
	return sb.String()
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
