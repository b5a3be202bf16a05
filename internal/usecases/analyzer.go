package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/interfaces"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	excerptLength   = 500
	aiContextLength = 3000
	thumbnailSize   = 256

	imageDescribePrompt = "Describe detalladamente esta imagen, incluyendo objetos, colores, composición y cualquier texto visible."
)

// TextExtractor pulls plain text out of binary documents such as PDFs.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// FileAnalyzer builds the analysis_result stored with each uploaded file.
type FileAnalyzer struct {
	router    *Router
	extractor TextExtractor
	storage   interfaces.ObjectStorage
	log       *zap.Logger
	now       func() time.Time
}

// NewFileAnalyzer accepts a nil extractor; PDFs are then only recorded, not read.
func NewFileAnalyzer(router *Router, extractor TextExtractor, storage interfaces.ObjectStorage, log *zap.Logger) *FileAnalyzer {
	return &FileAnalyzer{router: router, extractor: extractor, storage: storage, log: log, now: time.Now}
}

// DetectContentType sniffs the content and falls back to the file extension when the
// bytes say nothing more specific than octet-stream.
func DetectContentType(filename string, data []byte) string {
	detected := mimetype.Detect(data)
	ct := detected.String()
	if detected.Is("application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
			ct = byExt
		}
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

func isTextual(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// Analyze never fails the upload: when something cannot be read the result says so and
// the returned status is error.
func (a *FileAnalyzer) Analyze(ctx context.Context, rec *entities.FileRecord, data []byte) (map[string]any, string) {
	ext := strings.ToLower(filepath.Ext(rec.Filename))
	result := map[string]any{
		"file_name": rec.Filename,
		"file_size": rec.FileSize,
		"file_type": rec.FileType,
		"timestamp": a.now().UTC().Format(time.RFC3339),
	}

	switch {
	case strings.HasPrefix(rec.FileType, "image/"):
		return a.analyzeImage(ctx, rec, data, result)
	case ext == ".pdf" || rec.FileType == "application/pdf":
		a.analyzePDF(ctx, rec, data, result)
	case ext == ".json" || rec.FileType == "application/json":
		analyzeJSON(data, result)
	case ext == ".txt" || strings.HasPrefix(rec.FileType, "text/") || isTextual(data):
		analyzeText(string(data), result)
	default:
		result["analysis_type"] = "general"
		result["basic_analysis"] = fmt.Sprintf("Archivo %s procesado", orUnknown(rec.FileType))
	}

	if content, _ := result["full_text"].(string); content != "" {
		delete(result, "full_text")
		result["content"] = excerpt(content, excerptLength)
		if summary := a.summarize(ctx, rec.Filename, result["analysis_type"].(string), content); summary != "" {
			result["ai_analysis"] = summary
			delete(result, "basic_analysis")
		}
	}
	delete(result, "full_text")
	return result, entities.FileStatusCompleted
}

func analyzeText(content string, result map[string]any) {
	lines := strings.Count(content, "\n") + 1
	words := len(strings.Fields(content))
	result["analysis_type"] = "text"
	result["line_count"] = lines
	result["word_count"] = words
	result["basic_analysis"] = fmt.Sprintf("Archivo de texto con %d líneas y %d palabras", lines, words)
	result["full_text"] = content
}

func analyzeJSON(data []byte, result map[string]any) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		result["analysis_type"] = "text"
		result["basic_analysis"] = "Archivo JSON con formato inválido"
		result["full_text"] = string(data)
		return
	}

	keys := 0
	switch v := doc.(type) {
	case map[string]any:
		keys = len(v)
	case []any:
		keys = len(v)
	}
	result["analysis_type"] = "json"
	result["key_count"] = keys
	result["basic_analysis"] = fmt.Sprintf("Archivo JSON válido con %d claves principales", keys)
	result["full_text"] = string(data)
}

func (a *FileAnalyzer) analyzePDF(ctx context.Context, rec *entities.FileRecord, data []byte, result map[string]any) {
	result["analysis_type"] = "pdf"
	if a.extractor == nil {
		result["basic_analysis"] = "Documento PDF recibido; la extracción de texto no está configurada"
		return
	}
	text, err := a.extractor.ExtractText(ctx, data, rec.FileType)
	if err != nil {
		a.log.Warn("pdf text extraction failed", zap.String("file", rec.Filename), zap.Error(err))
		result["basic_analysis"] = "Error procesando PDF"
		return
	}
	result["basic_analysis"] = "Documento PDF procesado, contenido extraído"
	result["word_count"] = len(strings.Fields(text))
	result["full_text"] = text
}

func (a *FileAnalyzer) analyzeImage(ctx context.Context, rec *entities.FileRecord, data []byte, result map[string]any) (map[string]any, string) {
	result["analysis_type"] = "image_basic"
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		result["error"] = "No se pudo leer la imagen"
		return result, entities.FileStatusError
	}
	bounds := img.Bounds()
	result["resolution"] = fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy())
	result["basic_analysis"] = "Imagen cargada correctamente"

	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err == nil {
		path := strings.TrimSuffix(rec.StoragePath, filepath.Ext(rec.StoragePath)) + "_thumb.jpg"
		if err := a.storage.Upload(ctx, path, "image/jpeg", buf.Bytes()); err != nil {
			a.log.Warn("thumbnail upload failed", zap.String("path", path), zap.Error(err))
		} else {
			result["thumbnail_url"] = a.storage.PublicURL(path)
		}
	}

	imageURL := a.storage.PublicURL(rec.StoragePath)
	result["image_url"] = imageURL
	if a.router == nil {
		return result, entities.FileStatusCompleted
	}
	text, provider, err := a.router.Chat(ctx, interfaces.ChatRequest{
		Prompt:      imageDescribePrompt,
		ImageURL:    imageURL,
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err == nil && provider != localProviderName {
		result["analysis_type"] = "image_ai"
		result["ai_analysis"] = text
		delete(result, "basic_analysis")
	}
	return result, entities.FileStatusCompleted
}

// summarize asks a remote model for a summary; answers from the local responder are
// not summaries and are dropped.
func (a *FileAnalyzer) summarize(ctx context.Context, filename, analysisType, content string) string {
	if a.router == nil {
		return ""
	}
	prompt := fmt.Sprintf("Analiza este archivo %s llamado %q y proporciona un resumen útil:\n\n%s",
		analysisType, filename, truncateRunes(content, aiContextLength))
	text, provider, err := a.router.Chat(ctx, interfaces.ChatRequest{
		SystemPrompt: SystemPrompt,
		Prompt:       prompt,
		MaxTokens:    1000,
		Temperature:  0.3,
	})
	if err != nil || provider == localProviderName {
		return ""
	}
	return text
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orUnknown(s string) string {
	if s == "" {
		return "desconocido"
	}
	return s
}

// FormatAnalysis renders the analysis as the chat message shown after an upload.
func FormatAnalysis(rec *entities.FileRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📄 **Análisis del archivo \"%s\":**\n\n", rec.Filename)
	sb.WriteString("**Información básica:**\n")
	fmt.Fprintf(&sb, "• Tamaño: %.1f KB\n", float64(rec.FileSize)/1024)
	fmt.Fprintf(&sb, "• Tipo: %s\n\n", orUnknown(rec.FileType))

	res := rec.AnalysisResult
	if ai, ok := res["ai_analysis"].(string); ok && ai != "" {
		fmt.Fprintf(&sb, "**Análisis con IA:**\n%s\n\n", ai)
	} else if basic, ok := res["basic_analysis"].(string); ok && basic != "" {
		fmt.Fprintf(&sb, "**Análisis básico:**\n%s\n\n", basic)
	} else if msg, ok := res["error"].(string); ok {
		fmt.Fprintf(&sb, "**Error:**\n%s\n\n", msg)
	}
	if content, ok := res["content"].(string); ok && content != "" {
		fmt.Fprintf(&sb, "**Vista previa del contenido:**\n%s\n\n", content)
	}
	return strings.TrimSpace(sb.String())
}
