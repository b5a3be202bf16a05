package usecases

import (
	"context"
	"fmt"
	"math/rand"
	"sigma_ai/internal/interfaces"
	"strings"
	"sync"
	"time"
)

// SystemPrompt is sent to every remote chat provider.
const SystemPrompt = "Eres Sigma AI, un asistente inteligente. Eres útil, creativo y optimizado para " +
	"dispositivos móviles. Puedes generar imágenes, analizar archivos y mantener conversaciones " +
	"naturales. Siempre respondes en español de manera clara y amigable."

const localProviderName = "local"

type responseCategory struct {
	name      string
	keywords  []string
	templates []string
}

// Checked in order; the first category with a matching word wins.
var responseCategories = []responseCategory{
	{
		name:     "greeting",
		keywords: []string{"hola", "hello", "hi", "saludos", "buenos", "buenas"},
		templates: []string{
			"¡Hola! Soy Sigma AI, tu asistente personal. ¿En qué puedo ayudarte hoy?",
			"¡Saludos! Sigma AI aquí, listo para ayudarte con cualquier cosa.",
			"¡Hola! Estoy listo para crear, analizar y conversar contigo.",
			"¡Bienvenido! Soy Sigma AI. Cuéntame qué necesitas.",
		},
	},
	{
		name:     "programming",
		keywords: []string{"código", "codigo", "programar", "algoritmo", "función", "funcion", "variable"},
		templates: []string{
			"Puedo ayudarte con programación. ¿Qué lenguaje estás usando?",
			"Programación es una de mis especialidades. Comparte tu código y lo revisamos.",
			"Puedo revisar, explicar y optimizar tu código. ¿Por dónde empezamos?",
		},
	},
	{
		name:     "creative",
		keywords: []string{"crear", "diseñar", "imaginar", "inventar", "generar", "genera", "crea", "diseña", "imagina"},
		templates: []string{
			"Vamos a crear algo increíble. Puedo generar imágenes, ideas y contenido original.",
			"Mi lado creativo está listo. ¿Quieres una imagen, un video o una idea?",
			"Perfecto para crear. Descríbeme con detalle lo que imaginas.",
		},
	},
	{
		name:     "analysis",
		keywords: []string{"analizar", "analiza", "análisis", "datos", "archivo"},
		templates: []string{
			"Puedo analizar tus datos. Sube un archivo y te doy un resumen.",
			"Perfecto para análisis. Puedo examinar datos y encontrar patrones.",
			"Comparte la información y extraigo lo más importante para ti.",
		},
	},
	{
		name:     "help",
		keywords: []string{"ayuda", "ayudar", "necesito", "puedes", "podrías"},
		templates: []string{
			"Por supuesto, estoy aquí para ayudarte. ¿Qué necesitas?",
			"Claro que sí. Dime exactamente qué necesitas y lo resolvemos.",
			"Sin problema, puedo encargarme de diversas tareas para ti.",
		},
	},
	{
		name:     "question",
		keywords: []string{"qué", "cómo", "cuándo", "dónde", "por qué", "para qué"},
		templates: []string{
			"Excelente pregunta. Déjame pensar en la mejor respuesta para ti.",
			"Interesante consulta. Vamos a verlo paso a paso.",
			"Buena pregunta. Te cuento lo que sé sobre esto.",
		},
	},
}

var defaultTemplates = []string{
	"He recibido tu mensaje sobre \"%s\". ¿Podrías darme más detalles?",
	"Entiendo que quieres hablar de \"%s\". Cuéntame un poco más.",
	"Sobre \"%s\": estoy aquí para ayudarte, ¿qué te gustaría saber?",
}

var fallbackTemplates = []string{
	"Lo siento, hay un problema temporal con el servicio. ¿Podrías intentar de nuevo?",
	"El servicio no está disponible en este momento. Intenta más tarde.",
	"Hay un error de conexión. Por favor, reintenta.",
	"El servicio está temporalmente no disponible.",
}

// Responder answers from canned templates when no remote model is reachable.
type Responder struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewResponder(src rand.Source) *Responder {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Responder{rand: rand.New(src)}
}

func (r *Responder) Name() string { return localProviderName }

func (r *Responder) Chat(_ context.Context, req interfaces.ChatRequest) (string, error) {
	return r.Respond(req.Prompt), nil
}

// Respond picks a template for the first keyword category found in message.
func (r *Responder) Respond(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	words := strings.FieldsFunc(lower, func(c rune) bool {
		return strings.ContainsRune(" \t\n,.;:!¡", c)
	})

	for _, cat := range responseCategories {
		if matchesKeyword(lower, words, cat.keywords) {
			return r.pick(cat.templates)
		}
	}
	if strings.Contains(lower, "?") {
		return r.pick(responseCategories[len(responseCategories)-1].templates)
	}
	return fmt.Sprintf(r.pick(defaultTemplates), excerpt(strings.TrimSpace(message), 50))
}

// Fallback is returned when every provider failed.
func (r *Responder) Fallback() string {
	return r.pick(fallbackTemplates)
}

func (r *Responder) pick(options []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return options[r.rand.Intn(len(options))]
}

func matchesKeyword(lower string, words, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		for _, w := range words {
			if strings.Trim(w, "¿?") == kw {
				return true
			}
		}
	}
	return false
}

// excerpt cuts s to at most n runes, adding "..." when it was cut.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
