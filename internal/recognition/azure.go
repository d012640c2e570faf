package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	azureAPIVersion   = "2023-07-31"
	azureReceiptModel = "prebuilt-receipt"
)

// Azure implements the Recognizer interface against the Azure Document
// Intelligence REST API using the prebuilt receipt model.
type Azure struct {
	endpoint     string
	key          string
	client       *http.Client
	pollInterval time.Duration
}

// NewAzure creates a new Azure Recognizer instance. The endpoint is the
// resource base URL, e.g. https://myresource.cognitiveservices.azure.com.
func NewAzure(endpoint, key string) (*Azure, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if key == "" {
		return nil, fmt.Errorf("azure api key is required")
	}

	return &Azure{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		key:      key,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		pollInterval: time.Second,
	}, nil
}

// azureField mirrors one field of an analyze result. Fields are typed on
// the wire; exactly one value* member is populated per type.
type azureField struct {
	Type          string                `json:"type"`
	ValueString   *string               `json:"valueString,omitempty"`
	ValueNumber   *float64              `json:"valueNumber,omitempty"`
	ValueDate     *string               `json:"valueDate,omitempty"`
	ValueCurrency *azureCurrency        `json:"valueCurrency,omitempty"`
	ValueArray    []azureField          `json:"valueArray,omitempty"`
	ValueObject   map[string]azureField `json:"valueObject,omitempty"`
	Content       string                `json:"content,omitempty"`
	Confidence    *float64              `json:"confidence,omitempty"`
}

type azureCurrency struct {
	Amount float64 `json:"amount"`
}

type azureAnalyzeResult struct {
	Status        string `json:"status"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	AnalyzeResult *struct {
		Content   string `json:"content"`
		Documents []struct {
			Fields map[string]azureField `json:"fields"`
		} `json:"documents"`
	} `json:"analyzeResult,omitempty"`
}

// Recognize submits the document for analysis and polls the returned
// operation until it completes.
func (a *Azure) Recognize(ctx context.Context, document []byte, contentType string) (*RawResult, error) {
	opURL, err := a.submit(ctx, document, contentType)
	if err != nil {
		return nil, err
	}

	result, err := a.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}

	return azureToRawResult(result)
}

// Close closes the Azure client (no-op for HTTP client).
func (a *Azure) Close() error {
	return nil
}

func (a *Azure) submit(ctx context.Context, document []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		a.endpoint, azureReceiptModel, azureAPIVersion)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("creating analyze request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling document intelligence API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("document intelligence API error (status %d): %s", resp.StatusCode, string(body))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("document intelligence API returned no Operation-Location header")
	}
	return opURL, nil
}

func (a *Azure) poll(ctx context.Context, opURL string) (*azureAnalyzeResult, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, "GET", opURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", a.key)

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("polling analyze operation: %w", err)
		}

		var result azureAnalyzeResult
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding analyze result: %w", err)
		}

		switch result.Status {
		case "succeeded":
			return &result, nil
		case "failed":
			if result.Error != nil {
				return nil, fmt.Errorf("analyze operation failed: %s: %s", result.Error.Code, result.Error.Message)
			}
			return nil, fmt.Errorf("analyze operation failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
}

// azureToRawResult flattens the typed analyze result into the plain
// field/confidence shape the normalization core consumes.
func azureToRawResult(result *azureAnalyzeResult) (*RawResult, error) {
	if result.AnalyzeResult == nil || len(result.AnalyzeResult.Documents) == 0 {
		return nil, fmt.Errorf("no receipt detected in document")
	}

	doc := result.AnalyzeResult.Documents[0]
	raw := &RawResult{
		Fields:  make(map[string]RawField, len(doc.Fields)),
		Content: result.AnalyzeResult.Content,
	}

	for name, field := range doc.Fields {
		if name == "Items" {
			for _, item := range field.ValueArray {
				if item.ValueObject == nil {
					continue
				}
				rawItem := make(map[string]RawField, len(item.ValueObject))
				for k, v := range item.ValueObject {
					rawItem[k] = azureFieldValue(v)
				}
				raw.Items = append(raw.Items, rawItem)
			}
			continue
		}
		raw.Fields[name] = azureFieldValue(field)
	}

	return raw, nil
}

// azureFieldValue picks the populated typed value, falling back to the
// field's verbatim content when no typed value is present.
func azureFieldValue(f azureField) RawField {
	raw := RawField{Confidence: f.Confidence}

	switch {
	case f.ValueCurrency != nil:
		raw.Value = f.ValueCurrency.Amount
	case f.ValueNumber != nil:
		raw.Value = *f.ValueNumber
	case f.ValueString != nil:
		raw.Value = *f.ValueString
	case f.ValueDate != nil:
		raw.Value = *f.ValueDate
	case f.Content != "":
		raw.Value = f.Content
	}

	return raw
}
