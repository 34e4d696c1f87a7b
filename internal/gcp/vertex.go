package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultModelID is used whenever a capture does not name an extraction
// model explicitly.
const DefaultModelID = "gemini-1.5-pro"

// --- Loading List Model Prompts ---
const LoadingListSystemPrompt = "You are a warehouse document reader. Your task is to read photographed loading lists and transcribe every work activity and material line item into structured JSON. Accuracy matters more than completeness: never invent a product code or quantity that you cannot actually read."
const LoadingListUserPrompt = `You will be provided with one or more photographs of handwritten or printed loading lists, in page order.

Follow these rules precisely:
1.  Identify every work activity on the lists. An activity has a short code (e.g. "A-104") and usually a free-text description.
2.  Identify every material line item. A line item has a primary product code, a numeric quantity, and optionally a description. Attribute each line item to the activity it is listed under; if the page has no activity structure, leave "activityCode" empty.
3.  Judge each photograph: set "legible" to false if handwriting or focus prevents reliable reading, and "complete" to false if the page is cut off or partially covered. List concrete problems in "issues".
4.  If a photograph cannot be used at all, add its zero-based position to "ignoredImages" and do not guess at its content.
5.  Record any document-level doubts as human-readable strings in "warnings".
6.  If the lists carry a total cost figure, put it in "totalCost"; otherwise use null.
7.  The final output MUST be a single valid JSON object with exactly this shape. Do not include any text before or after the JSON object.

Example output format:
{
  "activities": [
    {"activityCode": "A-104", "description": "Scaffold assembly, hall 3"}
  ],
  "lineItems": [
    {"primaryCode": "4711-B", "quantity": 12, "description": "Coupler, double", "activityCode": "A-104"}
  ],
  "imageChecks": [
    {"index": 0, "legible": true, "complete": true, "issues": []}
  ],
  "ignoredImages": [],
  "warnings": [],
  "summary": {"totalActivities": 1, "totalLineItems": 1},
  "totalCost": null
}`

// --- Station Model Prompts ---
const StationSystemPrompt = "You are a warehouse inventory reader. Your task is to read a photographed station sign together with a photograph of the station's current stock and report the product code, the min/max levels printed on the sign, and the counted on-hand quantity as structured JSON. Never guess: report null for any value you cannot read with confidence."
const StationUserPrompt = `You will be provided with exactly two photographs: first the station sign, then the current stock at that station.

Follow these rules precisely:
1.  Read the product code and the minimum and maximum stock levels from the sign.
2.  Count the visible units in the stock photograph. If units are boxed, use the carton labelling to determine the count per box.
3.  Report null for any field you cannot determine reliably, and explain each null in "warnings".
4.  The final output MUST be a single valid JSON object with exactly this shape. Do not include any text before or after the JSON object.

Example output format:
{
  "productCode": "4711-B",
  "minQty": 10,
  "maxQty": 40,
  "onHandQty": 23,
  "warnings": []
}`

// VertexClient holds pre-configured generative models for both
// extraction flavours, plus the base client for caller-chosen model
// overrides.
type VertexClient struct {
	LoadingListModel *genai.GenerativeModel
	StationModel     *genai.GenerativeModel
	baseClient       *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	c := &VertexClient{baseClient: baseClient}
	c.LoadingListModel = c.configureModel(DefaultModelID, LoadingListSystemPrompt)
	c.StationModel = c.configureModel(DefaultModelID, StationSystemPrompt)
	return c, nil
}

// ModelForLoadingLists returns the loading-list model, reconfigured for
// modelID when the caller chose one.
func (c *VertexClient) ModelForLoadingLists(modelID string) *genai.GenerativeModel {
	if modelID == "" || modelID == DefaultModelID {
		return c.LoadingListModel
	}
	return c.configureModel(modelID, LoadingListSystemPrompt)
}

// ModelForStations returns the station model, reconfigured for modelID
// when the caller chose one.
func (c *VertexClient) ModelForStations(modelID string) *genai.GenerativeModel {
	if modelID == "" || modelID == DefaultModelID {
		return c.StationModel
	}
	return c.configureModel(modelID, StationSystemPrompt)
}

func (c *VertexClient) configureModel(modelID, systemPrompt string) *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(modelID)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. This is a critical setting for these models.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0), // Low temp for deterministic, structured output
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return model
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// ExtractResponseText robustly gets the raw text content from a model
// response, stripping markdown fences the model sometimes adds despite
// the JSON response type.
func ExtractResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	if txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		cleanJSON := strings.TrimSpace(string(txt))
		cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
		cleanJSON = strings.TrimSuffix(cleanJSON, "```")
		return strings.TrimSpace(cleanJSON)
	}
	return ""
}

// ImageMIMEType maps an asset URI to the MIME type declared on its
// Vertex file part.
func ImageMIMEType(uri string) string {
	switch {
	case strings.HasSuffix(uri, ".png"):
		return "image/png"
	case strings.HasSuffix(uri, ".webp"):
		return "image/webp"
	case strings.HasSuffix(uri, ".heic"):
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
