package recognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// receiptRecognitionPrompt instructs the vision model to emit the same
// field/confidence shape the document-intelligence API produces, so both
// providers feed the normalization core identically.
const receiptRecognitionPrompt = `You are analyzing a receipt or invoice document. Carefully read all text in the image and extract the recognized fields.

Return ONLY valid JSON in this exact format:
{
  "fields": {
    "MerchantName": {"value": "Store Name", "confidence": 0.95},
    "Total": {"value": 0.00, "confidence": 0.95},
    "TransactionDate": {"value": "YYYY-MM-DD", "confidence": 0.95},
    "TotalTax": {"value": 0.00, "confidence": 0.95},
    "ReceiptNumber": {"value": "123456", "confidence": 0.95},
    "PaymentMethod": {"value": "VISA", "confidence": 0.95}
  },
  "items": [
    {
      "Description": {"value": "Item name", "confidence": 0.95},
      "Quantity": {"value": 1, "confidence": 0.95},
      "Price": {"value": 0.00, "confidence": 0.95},
      "TotalPrice": {"value": 0.00, "confidence": 0.95},
      "Tax": {"value": 0.00, "confidence": 0.95}
    }
  ],
  "content": "full text of the receipt as read, line by line"
}

Important:
- "Total" is the final grand total or amount due, usually at the bottom
- "TransactionDate" must be in YYYY-MM-DD format
- Amounts must be numbers (not strings), representing dollars and cents
- "confidence" is your certainty in that field between 0.0 and 1.0
- Omit any field you cannot find; do not invent values
- Include one entry in "items" per purchased line item, in receipt order
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// Gemini implements the Recognizer interface using a Google Gemini vision
// model.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Recognizer instance.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Recognize analyzes a receipt and returns its raw structured output.
func (g *Gemini) Recognize(ctx context.Context, document []byte, contentType string) (*RawResult, error) {
	// The model wants image input; PDFs and exotic image formats are
	// rendered to PNG first.
	imageData, err := prepareImageData(document, contentType)
	if err != nil {
		return nil, err
	}

	parts := []genai.Part{
		genai.ImageData("png", imageData),
		genai.Text(receiptRecognitionPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	raw, err := parseRawResultJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing recognition result: %w", err)
	}

	return raw, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
