package services

import (
	"context"
	"strings"
	"testing"

	"policypal/internal/models"
)

func TestNormalizeExtractionCompleteJSON(t *testing.T) {
	record := NormalizeExtraction(extractionJSON, "car.pdf")

	if record.Name != "My Car Policy" {
		t.Errorf("name: got %q", record.Name)
	}
	if record.Number != "PC-001" || record.Holder != "Somchai" || record.Insurer != "Viriyah" {
		t.Errorf("identity fields: %+v", record)
	}
	if record.Status != models.PolicyStatusActive {
		t.Errorf("status: got %s", record.Status)
	}
	if record.Type != models.PolicyTypeCar {
		t.Errorf("type: got %s", record.Type)
	}
	if record.Icon != "car" || record.Color != "bg-green-100 text-green-600" {
		t.Errorf("presentation fields: icon=%s color=%s", record.Icon, record.Color)
	}
	if record.ID == "" || record.CreatedAt.IsZero() {
		t.Errorf("expected generated id and timestamp")
	}
}

func TestNormalizeExtractionFencedJSON(t *testing.T) {
	raw := "Sure, here is the data:\n```json\n{\"name\":\"X\"}\n```\nthanks"
	record := NormalizeExtraction(raw, "doc.pdf")

	if record.Name != "X" {
		t.Errorf("expected name from fenced JSON, got %q", record.Name)
	}
	if record.Number != "N/A" || record.Holder != "N/A" || record.Insurer != "N/A" || record.Expiry != "N/A" {
		t.Errorf("expected placeholder fields: %+v", record)
	}
	if record.Status != models.PolicyStatusPending {
		t.Errorf("empty status must become Pending, got %s", record.Status)
	}
	if record.Type != models.PolicyTypeOther {
		t.Errorf("empty type must become Other, got %s", record.Type)
	}
}

func TestNormalizeExtractionUnparseablePayload(t *testing.T) {
	raw := "not json at all"
	record := NormalizeExtraction(raw, "doc.pdf")

	if record.Name != "doc.pdf" {
		t.Errorf("expected filename as name fallback, got %q", record.Name)
	}
	if record.Summary != raw || record.Content != raw {
		t.Errorf("raw text must be preserved: summary=%q content=%q", record.Summary, record.Content)
	}
	if record.Status != models.PolicyStatusPending || record.Type != models.PolicyTypeOther {
		t.Errorf("fallback record must be Pending/Other, got %s/%s", record.Status, record.Type)
	}
	if record.Number != "N/A" {
		t.Errorf("expected N/A number, got %q", record.Number)
	}
}

func TestNormalizeExtractionUnknownStatus(t *testing.T) {
	record := NormalizeExtraction(`{"name":"P","status":"Cancelled","type":"Travel"}`, "doc.pdf")
	if record.Status != models.PolicyStatusUnknown {
		t.Errorf("unrecognized status must become Unknown, got %s", record.Status)
	}
	if record.Type != models.PolicyTypeOther {
		t.Errorf("unrecognized type must become Other, got %s", record.Type)
	}
}

func TestAnalyzePolicySendsPageImages(t *testing.T) {
	vision := &fakeVision{content: extractionJSON}
	analyzer := NewAnalysisService(vision, "gpt-4o")

	pages := []string{"data:image/png;base64,AAA", "data:image/png;base64,BBB"}
	record, err := analyzer.AnalyzePolicy(context.Background(), "car.pdf", pages, "")
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if record.Name != "My Car Policy" {
		t.Errorf("unexpected record: %+v", record)
	}

	parts := vision.lastReq.Messages[0].Content
	if len(parts) != 3 {
		t.Fatalf("expected prompt plus 2 image parts, got %d", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != AnalysisPrompt {
		t.Errorf("first part must be the analysis prompt")
	}
	for i, part := range parts[1:] {
		if part.Type != "image_url" || part.ImageURL == nil || part.ImageURL.URL != pages[i] {
			t.Errorf("part %d: expected image data URL, got %+v", i+1, part)
		}
	}
	if vision.lastReq.ResponseFormat == nil || vision.lastReq.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format")
	}
}

func TestAnalyzePolicyFallsBackToDocumentText(t *testing.T) {
	vision := &fakeVision{content: extractionJSON}
	analyzer := NewAnalysisService(vision, "gpt-4o")

	if _, err := analyzer.AnalyzePolicy(context.Background(), "car.pdf", nil, "extracted policy text"); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	parts := vision.lastReq.Messages[0].Content
	if len(parts) != 2 || parts[1].Type != "text" {
		t.Fatalf("expected prompt plus text part, got %+v", parts)
	}
	if !strings.Contains(parts[1].Text, "extracted policy text") {
		t.Errorf("document text missing from request: %q", parts[1].Text)
	}
}

func TestAnalyzePolicyRejectsEmptyInput(t *testing.T) {
	analyzer := NewAnalysisService(&fakeVision{content: extractionJSON}, "gpt-4o")
	if _, err := analyzer.AnalyzePolicy(context.Background(), "car.pdf", nil, "   "); err == nil {
		t.Fatal("expected error when neither images nor text are available")
	}
}
