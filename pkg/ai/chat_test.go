package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var conversation = []Turn{
	{Role: RoleUser, Text: "hi"},
	{Role: RoleAssistant, Text: "hello, how can I help?"},
	{Role: RoleUser, Text: "how do I sell?"},
	{Role: "system", Text: "ignored"},
}

func TestGeminiChatMapsRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Contents) != 3 || req.Contents[1].Role != "model" {
			t.Errorf("unexpected contents: %+v", req.Contents)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "sys" {
			t.Errorf("missing system instruction")
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Use the "},{"text":"Sell page."}]}}]}`))
	}))
	defer srv.Close()

	model, err := NewChatModel(ProviderConfig{Provider: "gemini", APIKey: "key", Model: "models/test-model", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new chat model: %v", err)
	}
	got, err := model.Chat(context.Background(), "sys", conversation)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got != "Use the Sell page." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestGeminiChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()
	c, _ := NewGeminiClient("key", "")
	c.baseURL = srv.URL
	if _, err := c.Chat(context.Background(), "", conversation); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/api/chat" || req.Stream || len(req.Messages) != 4 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request %s %+v", r.URL.Path, req)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" ok "}}`))
	}))
	defer srv.Close()
	c, err := NewOllamaClient(srv.URL, "llama3")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := c.Chat(context.Background(), "sys", conversation)
	if err != nil || got != "ok" {
		t.Fatalf("chat: %q %v", got, err)
	}
}

func TestOpenAICompatChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk" {
			t.Errorf("missing bearer")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()
	c, err := NewOpenAICompatClient(srv.URL+"/v1/", "sk", "m")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := c.Chat(context.Background(), "", conversation)
	if err != nil || got != "done" {
		t.Fatalf("chat: %q %v", got, err)
	}
}

func TestNewChatModelProviders(t *testing.T) {
	m, err := NewChatModel(ProviderConfig{})
	if err != nil || m != nil {
		t.Fatalf("empty provider should disable llm: %v %v", m, err)
	}
	if _, err := NewChatModel(ProviderConfig{Provider: "bard"}); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
	if _, err := NewChatModel(ProviderConfig{Provider: "gemini"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
