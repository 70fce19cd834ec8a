package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/parser"
	"go.uber.org/zap"
)

const extractionInstruction = `Extract address fields from the text below.
Respond with a single JSON object using exactly these keys:
"street", "cross_street", "city", "region", "postal_code", "country".
Leave a key as an empty string when the text does not contain that field.
"cross_street" is only for the second street of an intersection.
Do not guess fields that are not present. Text:
`

// LlamaExtractor calls a local Ollama-compatible server to pull structured
// fields out of address text. It implements parser.TextFieldExtractor. The
// model is registered at construction but never invoked until the first
// extraction call.
type LlamaExtractor struct {
	host   string
	model  string
	client *http.Client
	logger *zap.Logger
}

// NewLlamaExtractor wires a client for the given model identifier
// (e.g. "llama3.1") served at host (e.g. "http://localhost:11434").
func NewLlamaExtractor(host, model string, timeout time.Duration, logger *zap.Logger) *LlamaExtractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LlamaExtractor{
		host:   host,
		model:  model,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

// generateResponse is the subset of the Ollama response we consume.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// extractedPayload is the structured answer the model is instructed to
// produce.
type extractedPayload struct {
	Street      string `json:"street"`
	CrossStreet string `json:"cross_street"`
	City        string `json:"city"`
	Region      string `json:"region"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
}

// ExtractFields implements parser.TextFieldExtractor. A response that fails
// to parse as the structured contract degrades to an empty extraction
// rather than an error; only transport failures and timeouts are reported.
func (le *LlamaExtractor) ExtractFields(ctx context.Context, text string) (parser.ExtractedFields, error) {
	body, err := json.Marshal(generateRequest{
		Model:  le.model,
		Prompt: extractionInstruction + text,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return parser.ExtractedFields{}, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, le.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return parser.ExtractedFields{}, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := le.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return parser.ExtractedFields{}, fmt.Errorf("%w: %v", models.ErrModelTimeout, err)
		}
		return parser.ExtractedFields{}, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return parser.ExtractedFields{}, fmt.Errorf("%w: status %d: %s",
			models.ErrModelUnavailable, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return parser.ExtractedFields{}, fmt.Errorf("%w: decoding response: %v", models.ErrModelUnavailable, err)
	}

	var payload extractedPayload
	if err := json.Unmarshal([]byte(gen.Response), &payload); err != nil {
		// Unstructured model output counts as "unable to extract".
		le.logger.Debug("Model returned unparseable extraction, treating as empty",
			zap.String("model", le.model))
		return parser.ExtractedFields{}, nil
	}

	return parser.ExtractedFields{
		Street:      payload.Street,
		CrossStreet: payload.CrossStreet,
		City:        payload.City,
		Region:      payload.Region,
		PostalCode:  payload.PostalCode,
		Country:     payload.Country,
	}, nil
}
