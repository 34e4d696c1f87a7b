package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

// VertexExtractor runs extraction calls against the configured Vertex
// models. The raw response text is returned alongside the parsed result
// so callers can persist it for audit even when parsing fails.
type VertexExtractor struct {
	client *VertexClient
}

func NewVertexExtractor(client *VertexClient) *VertexExtractor {
	return &VertexExtractor{client: client}
}

// ExtractLoadingList reads one capture group's photographs, in order.
func (e *VertexExtractor) ExtractLoadingList(ctx context.Context, assetURIs []string, modelID string) (*models.ExtractionResult, string, error) {
	if len(assetURIs) == 0 {
		return nil, "", fmt.Errorf("at least one asset URI is required")
	}
	model := e.client.ModelForLoadingLists(modelID)

	parts := make([]genai.Part, 0, len(assetURIs)+1)
	for _, uri := range assetURIs {
		parts = append(parts, genai.FileData{MIMEType: ImageMIMEType(uri), FileURI: uri})
	}
	parts = append(parts, genai.Text(LoadingListUserPrompt))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate loading-list extraction: %w", err)
	}

	raw := ExtractResponseText(resp)
	if raw == "" {
		return nil, "", fmt.Errorf("model returned an empty response instead of JSON")
	}

	var result models.ExtractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, raw, fmt.Errorf("failed to parse JSON from model: %w", err)
	}
	return &result, raw, nil
}

// ExtractStation reads a station's sign and stock photographs.
func (e *VertexExtractor) ExtractStation(ctx context.Context, signURI, stockURI, modelID string) (*models.StationReading, string, error) {
	if signURI == "" || stockURI == "" {
		return nil, "", fmt.Errorf("both sign and stock URIs are required")
	}
	model := e.client.ModelForStations(modelID)

	parts := []genai.Part{
		genai.FileData{MIMEType: ImageMIMEType(signURI), FileURI: signURI},
		genai.FileData{MIMEType: ImageMIMEType(stockURI), FileURI: stockURI},
		genai.Text(StationUserPrompt),
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate station extraction: %w", err)
	}

	raw := ExtractResponseText(resp)
	if raw == "" {
		return nil, "", fmt.Errorf("model returned an empty response instead of JSON")
	}

	var reading models.StationReading
	if err := json.Unmarshal([]byte(raw), &reading); err != nil {
		return nil, raw, fmt.Errorf("failed to parse JSON from model: %w", err)
	}
	return &reading, raw, nil
}
