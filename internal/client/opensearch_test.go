package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vigil-systems/vigil/internal/config"
)

func newFakeCluster(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"name": "test-node",
			"cluster_name": "test-cluster",
			"version": {
				"number": "2.0.0"
			}
		}`))
	}))
}

func TestNewOpenSearchClient_Success(t *testing.T) {
	mockServer := newFakeCluster(t)
	defer mockServer.Close()

	cfg := config.OpenSearchConfig{
		URL:      mockServer.URL,
		Username: "testuser",
		Password: "testpass",
		Insecure: true,
	}

	client, err := NewOpenSearchClient(cfg)
	if err != nil {
		t.Fatalf("Expected successful client creation, got error: %v", err)
	}
	if client == nil {
		t.Fatal("Expected non-nil client")
	}
	if client.Client() == nil {
		t.Error("Expected non-nil OpenSearch client")
	}
}

func TestNewOpenSearchClient_ConnectionFailure(t *testing.T) {
	cfg := config.OpenSearchConfig{
		URL:      "http://nonexistent-server:9999",
		Username: "testuser",
		Password: "testpass",
		Insecure: true,
	}

	client, err := NewOpenSearchClient(cfg)
	if err == nil {
		t.Error("Expected error when connecting to invalid server")
	}
	if client != nil {
		t.Error("Expected nil client on connection failure")
	}
}

func TestNewOpenSearchClient_ErrorResponse(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
	}))
	defer mockServer.Close()

	cfg := config.OpenSearchConfig{
		URL:      mockServer.URL,
		Insecure: true,
	}

	client, err := NewOpenSearchClient(cfg)
	if err == nil {
		t.Error("Expected error when OpenSearch returns error response")
	}
	if client != nil {
		t.Error("Expected nil client on error response")
	}
}

func TestPing(t *testing.T) {
	mockServer := newFakeCluster(t)
	defer mockServer.Close()

	client, err := NewOpenSearchClient(config.OpenSearchConfig{URL: mockServer.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Expected successful ping, got error: %v", err)
	}

	mockServer.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Error("Expected ping error after server shutdown")
	}
}
