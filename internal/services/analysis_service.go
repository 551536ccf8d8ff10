package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"policypal/internal/models"
	"policypal/internal/openai"
)

// AnalysisService extracts structured policy data from an uploaded
// document via a vision-capable model. The model output is untrusted and
// is parsed defensively; the service always yields a displayable record
// for any payload the collaborator returns.
type AnalysisService struct {
	vision VisionAPI
	model  string
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(vision VisionAPI, model string) *AnalysisService {
	return &AnalysisService{
		vision: vision,
		model:  model,
	}
}

// extractedFields mirrors the JSON object the analysis prompt requests.
// Every field is optional on the wire.
type extractedFields struct {
	Name    string `json:"name"`
	Number  string `json:"number"`
	Holder  string `json:"holder"`
	Insurer string `json:"insurer"`
	Status  string `json:"status"`
	Expiry  string `json:"expiry"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// AnalyzePolicy runs OCR/vision extraction over the document's
// rasterized pages (data URLs). When no pages are supplied, the
// document's extracted plain text is sent instead. filename seeds the
// record name fallback. Only collaborator transport failures return an
// error; malformed payloads are recovered into a raw-text record.
func (s *AnalysisService) AnalyzePolicy(ctx context.Context, filename string, pageImages []string, documentText string) (*models.PolicyRecord, error) {
	parts := []openai.ChatMessagePart{
		{Type: "text", Text: AnalysisPrompt},
	}
	for _, image := range pageImages {
		parts = append(parts, openai.ChatMessagePart{
			Type:     "image_url",
			ImageURL: &openai.ChatImageURL{URL: image},
		})
	}
	if len(pageImages) == 0 {
		if strings.TrimSpace(documentText) == "" {
			return nil, fmt.Errorf("no page images or document text to analyze")
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: "text",
			Text: "Document text:\n\n" + documentText,
		})
	}

	log.Printf("🔍 [ANALYSIS] Analyzing %s (%d page image(s))", filename, len(pageImages))

	completion, err := s.vision.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          s.model,
		Messages:       []openai.ChatMessage{{Role: "user", Content: parts}},
		MaxTokens:      2000,
		ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("vision analysis failed: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("no response from vision model")
	}

	record := NormalizeExtraction(completion.Choices[0].Message.Content, filename)
	log.Printf("✅ [ANALYSIS] %s extracted: type=%s status=%s", filename, record.Type, record.Status)
	return record, nil
}

// NormalizeExtraction turns the raw model output into a well-formed
// PolicyRecord. The payload may be wrapped in prose or code fences; the
// embedded JSON object is located and parsed, and every missing field
// falls back to a placeholder. When no JSON object can be parsed at all,
// the raw text becomes the record's summary and content so the pipeline
// never drops an upload.
func NormalizeExtraction(raw, filename string) *models.PolicyRecord {
	now := time.Now()
	record := &models.PolicyRecord{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}

	var fields extractedFields
	jsonPayload := extractJSONObject(raw)
	if jsonPayload == "" || json.Unmarshal([]byte(jsonPayload), &fields) != nil {
		// Total parse failure: keep the raw text so nothing is lost
		extractionFallbacks.Inc()
		log.Printf("⚠️ [ANALYSIS] Could not parse extraction payload, keeping raw text (%d chars)", len(raw))
		record.Name = fallbackString(filename, "Unknown")
		record.Number = "N/A"
		record.Holder = "N/A"
		record.Insurer = "N/A"
		record.Status = models.PolicyStatusPending
		record.Expiry = "N/A"
		record.Type = models.PolicyTypeOther
		record.Summary = raw
		record.Content = raw
		record.Icon = models.IconForType(record.Type)
		record.Color = models.ColorForStatus(record.Status)
		return record
	}

	record.Name = fallbackString(fields.Name, fallbackString(filename, "Unknown"))
	record.Number = fallbackString(fields.Number, "N/A")
	record.Holder = fallbackString(fields.Holder, "N/A")
	record.Insurer = fallbackString(fields.Insurer, "N/A")
	record.Status = models.ParsePolicyStatus(fields.Status)
	record.Expiry = fallbackString(fields.Expiry, "N/A")
	record.Type = models.ParsePolicyType(fields.Type)
	record.Summary = fields.Summary
	record.Content = fields.Content
	record.Icon = models.IconForType(record.Type)
	record.Color = models.ColorForStatus(record.Status)
	return record
}

// extractJSONObject locates the JSON object embedded in model output that
// may carry surrounding prose or code fences. Returns "" when the text
// holds no braced object.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func fallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
