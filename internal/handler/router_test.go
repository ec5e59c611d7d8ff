package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/chatgate/internal/config"
	"github.com/hitoshi/chatgate/internal/llm"
	"github.com/hitoshi/chatgate/internal/metrics"
	"github.com/hitoshi/chatgate/internal/pipeline"
	"github.com/hitoshi/chatgate/internal/prompt"
)

// fakeCompleter は受け取ったプロンプトを記録し、固定の応答を返す。
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeCompleter) Complete(ctx context.Context, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(ctx context.Context) error {
	return f.err
}

func newTestRouter(t *testing.T, completer llm.Completer, deps RouterDeps) http.Handler {
	t.Helper()
	reg, err := pipeline.NewRegistry(completer, prompt.Personas()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	deps.Pipelines = reg
	router, err := NewRouter(&deps)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// 海賊ペルソナのエンドポイントで、補完結果 "X" がそのまま返る
func TestRouter_Chatbot_DispatchesWithPirateTemplate(t *testing.T) {
	fc := &fakeCompleter{reply: "X"}
	router := newTestRouter(t, fc, RouterDeps{})

	w := serve(router, http.MethodPost, ChatbotPath, `{"query": "how much gold is in my pirate savings"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"response":"X"}` {
		t.Errorf("body = %s", got)
	}
	if len(fc.prompts) != 1 {
		t.Fatalf("completer calls = %d, want 1", len(fc.prompts))
	}
	p := fc.prompts[0]
	if !strings.Contains(p, "Monkey Island") || !strings.HasSuffix(p, "User Input: how much gold is in my pirate savings\nResponse: ") {
		t.Errorf("unexpected pirate prompt:\n%s", p)
	}
}

func TestRouter_MonkeyIsland_UngatedBankingTemplate(t *testing.T) {
	fc := &fakeCompleter{reply: "Your balance is fine."}
	router := newTestRouter(t, fc, RouterDeps{})

	w := serve(router, http.MethodPost, MonkeyIslandPath, `{"query": "what's the weather"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	if len(fc.prompts) != 1 || !strings.HasSuffix(fc.prompts[0], "Query: what's the weather\nResponse: ") {
		t.Errorf("unexpected banking prompt: %v", fc.prompts)
	}
}

func TestRouter_Chatbot_GateRejects(t *testing.T) {
	fc := &fakeCompleter{reply: "X"}
	router := newTestRouter(t, fc, RouterDeps{})

	w := serve(router, http.MethodPost, ChatbotPath, `{"query": "what's the weather"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"i dont understand"}` {
		t.Errorf("body = %s", got)
	}

	w = serve(router, http.MethodPost, ChatbotPath, `{"query": "ahoy there matey"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"response":"Hi! How can I help you today?"}` {
		t.Errorf("body = %s", got)
	}

	if len(fc.prompts) != 0 {
		t.Errorf("completer must not be called, got %d calls", len(fc.prompts))
	}
}

// ルーター経由でもPOST以外はハンドラーの405が返る（chiの既定405ではない）
func TestRouter_ChatEndpoints_MethodNotAllowedBody(t *testing.T) {
	router := newTestRouter(t, &fakeCompleter{}, RouterDeps{CORSAllowedOrigin: "http://localhost:3000"})

	for _, path := range []string{ChatbotPath, MonkeyIslandPath} {
		for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions} {
			w := serve(router, m, path, "")
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s %s: status = %d, want 405", m, path, w.Code)
			}
			if got := strings.TrimSpace(w.Body.String()); got != `{"error":"Invalid HTTP method"}` {
				t.Errorf("%s %s: body = %s", m, path, got)
			}
		}
	}
}

func TestRouter_UpstreamFailure_DoesNotLeakDetail(t *testing.T) {
	fc := &fakeCompleter{err: &llm.Error{Kind: llm.KindRejected, StatusCode: 401, Err: errors.New("Invalid API Key gsk_abc")}}
	router := newTestRouter(t, fc, RouterDeps{})

	w := serve(router, http.MethodPost, MonkeyIslandPath, `{"query":"balance"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "completion request rejected" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t, &fakeCompleter{reply: "X"}, RouterDeps{})

	w := serve(router, http.MethodPost, MonkeyIslandPath, `{"query":"hi"}`)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, &fakeCompleter{}, RouterDeps{CORSAllowedOrigin: "http://localhost:3000"})

	req := httptest.NewRequest(http.MethodOptions, ChatbotPath, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

// 既定設定ではCORSが無効のため、プリフライト形式のOPTIONSもハンドラーの405になる
func TestRouter_DefaultConfig_PreflightOnChatPathsIsMethodNotAllowed(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGIN", "")
	t.Setenv("DATABASE_URL", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	fc := &fakeCompleter{reply: "X"}
	router := newTestRouter(t, fc, RouterDeps{CORSAllowedOrigin: cfg.CORSAllowedOrigin})

	for _, path := range []string{ChatbotPath, MonkeyIslandPath} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://evil.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("OPTIONS %s: status = %d, want 405", path, w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != `{"error":"Invalid HTTP method"}` {
			t.Errorf("OPTIONS %s: body = %s", path, got)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("OPTIONS %s: Access-Control-Allow-Origin = %q, want none", path, got)
		}
	}
	if len(fc.prompts) != 0 {
		t.Errorf("completer must not be called, got %d calls", len(fc.prompts))
	}
}

// 末尾スラッシュなしのパスも同じハンドラーで処理する
func TestRouter_ChatEndpoints_WithoutTrailingSlash(t *testing.T) {
	fc := &fakeCompleter{reply: "X"}
	router := newTestRouter(t, fc, RouterDeps{})

	for _, path := range []string{"/chatbot/agent_query", "/monkeyisland/agent_query"} {
		w := serve(router, http.MethodPost, path, `{"query":"gold"}`)
		if w.Code != http.StatusOK {
			t.Errorf("POST %s: status = %d, want 200; body=%s", path, w.Code, w.Body.String())
		}
		if got := strings.TrimSpace(w.Body.String()); got != `{"response":"X"}` {
			t.Errorf("POST %s: body = %s", path, got)
		}

		w = serve(router, http.MethodGet, path, "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: status = %d, want 405", path, w.Code)
		}
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{"no database", nil, http.StatusOK},
		{"database ok", &fakePinger{}, http.StatusOK},
		{"database down", &fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeCompleter{}, RouterDeps{HealthChecker: tt.checker})
			w := serve(router, http.MethodGet, "/health", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	router := newTestRouter(t, &fakeCompleter{reply: "X"}, RouterDeps{
		Metrics:         collector,
		MetricsGatherer: reg,
	})

	serve(router, http.MethodPost, ChatbotPath, `{"query":"gold"}`)
	w := serve(router, http.MethodGet, "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `chatgate_chat_requests_total{endpoint="/chatbot/agent_query/",outcome="success"} 1`) {
		t.Errorf("chat request counter missing:\n%s", body)
	}
	if !strings.Contains(body, "chatgate_completion_latency_seconds") {
		t.Errorf("latency histogram missing")
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	router := newTestRouter(t, &fakeCompleter{}, RouterDeps{})

	w := serve(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRouter_AccountRoutesDisabledWithoutService(t *testing.T) {
	router := newTestRouter(t, &fakeCompleter{}, RouterDeps{})

	w := serve(router, http.MethodPost, "/api/users", `{}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestNewRouter_MissingPersonaPipeline(t *testing.T) {
	reg, err := pipeline.NewRegistry(&fakeCompleter{}, prompt.PersonaPirate)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := NewRouter(&RouterDeps{Pipelines: reg}); err == nil {
		t.Error("expected error when a chat route has no pipeline")
	}
}
