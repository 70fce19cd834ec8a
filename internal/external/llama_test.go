package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/parser"
	"go.uber.org/zap"
)

func TestExtractFields(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{
			Response: `{"street":"Bridge Street","cross_street":"Church Street","city":"Camp Robinson","region":"ON","postal_code":"M6M 4X2","country":"canada"}`,
			Done:     true,
		})
	}))
	defer server.Close()

	le := NewLlamaExtractor(server.URL, "llama3.1", time.Second, zap.NewNop())
	fields, err := le.ExtractFields(context.Background(), "bridge street and church street camp robinson")
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}

	want := parser.ExtractedFields{
		Street:      "Bridge Street",
		CrossStreet: "Church Street",
		City:        "Camp Robinson",
		Region:      "ON",
		PostalCode:  "M6M 4X2",
		Country:     "canada",
	}
	if fields != want {
		t.Errorf("fields = %+v, want %+v", fields, want)
	}

	if gotReq.Model != "llama3.1" || gotReq.Stream || gotReq.Format != "json" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestExtractFieldsUnparseableResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{
			Response: "Sure! The address looks Canadian to me.",
			Done:     true,
		})
	}))
	defer server.Close()

	le := NewLlamaExtractor(server.URL, "llama3.1", time.Second, zap.NewNop())
	fields, err := le.ExtractFields(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unstructured output should not be an error, got %v", err)
	}
	if !fields.IsEmpty() {
		t.Errorf("unstructured output should yield empty fields, got %+v", fields)
	}
}

func TestExtractFieldsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	le := NewLlamaExtractor(server.URL, "llama3.1", time.Second, zap.NewNop())
	_, err := le.ExtractFields(context.Background(), "anything")
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestExtractFieldsServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	le := NewLlamaExtractor(server.URL, "llama3.1", time.Second, zap.NewNop())
	_, err := le.ExtractFields(context.Background(), "anything")
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestExtractFieldsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The body must be drained before the server watches for client
		// disconnect; otherwise r.Context() is never cancelled and Close hangs.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	le := NewLlamaExtractor(server.URL, "llama3.1", 10*time.Second, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := le.ExtractFields(ctx, "anything")
	if !errors.Is(err, models.ErrModelTimeout) {
		t.Fatalf("expected ErrModelTimeout, got %v", err)
	}
}
