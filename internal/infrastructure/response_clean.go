package infrastructure

import (
	"regexp"
	"strings"
)

// LLaVAEmptyAnswer replaces answers too short to be useful.
const LLaVAEmptyAnswer = "He procesado tu consulta. ¿Podrías ser más específico sobre lo que necesitas?"

var (
	assistantLabel = regexp.MustCompile(`(?i)^(Asistente:|Assistant:|AI:|IA:)\s*`)
	userLabel      = regexp.MustCompile(`(?i)^(Usuario:|User:)\s*`)
	llavaRoles     = regexp.MustCompile(`(?i)^((USER:|ASSISTANT:)\s*)+`)
	llavaTail      = regexp.MustCompile(`(?s)\n\nUSER:.*$`)
)

// CleanResponse strips role labels models sometimes echo back.
func CleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = assistantLabel.ReplaceAllString(s, "")
	s = userLabel.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// CleanLLaVAResponse removes the USER/ASSISTANT framing of the LLaVA prompt format and
// any continuation the model invents after its answer.
func CleanLLaVAResponse(s string) string {
	s = strings.TrimSpace(s)
	s = llavaRoles.ReplaceAllString(s, "")
	s = llavaTail.ReplaceAllString(s, "")
	s = CleanResponse(s)
	if len([]rune(s)) < 5 {
		return LLaVAEmptyAnswer
	}
	return s
}
