// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/chatgate/internal/intent"
	"github.com/hitoshi/chatgate/internal/llm"
	"github.com/hitoshi/chatgate/internal/metrics"
	"github.com/hitoshi/chatgate/internal/middleware"
	"github.com/hitoshi/chatgate/internal/prompt"
)

// チャットAPIの固定メッセージ
const (
	msgInvalidMethod = "Invalid HTTP method"
	msgInvalidJSON   = "Invalid JSON"
	msgNoQuery       = "No query provided"
	msgGreeting      = "Hi! How can I help you today?"
	msgOutOfDomain   = "i dont understand"
	msgInternalError = "internal error"
)

// メトリクスに記録するリクエスト結果
const (
	outcomeMethodNotAllowed = "method_not_allowed"
	outcomeInvalidJSON      = "invalid_json"
	outcomeNoQuery          = "no_query"
	outcomeGreeting         = "greeting"
	outcomeOutOfDomain      = "out_of_domain"
	outcomeSuccess          = "success"
	outcomeFailure          = "failure"
)

// maxChatBodyBytes はリクエストボディの上限。超過分は不正なJSONとして扱う。
const maxChatBodyBytes = 1 << 20

// Dispatcher はクエリから応答テキストを生成する。*pipeline.Pipeline が実装する。
type Dispatcher interface {
	Persona() prompt.Persona
	Run(ctx context.Context, query string) (string, error)
}

// chatResponse は成功時のレスポンスボディ。
type chatResponse struct {
	Response string `json:"response"`
}

// ChatHandler はチャットエンドポイントのHTTPハンドラー。
// gateがnilの場合は意図判定を行わず、すべてのクエリをディスパッチする。
type ChatHandler struct {
	endpoint   string
	dispatcher Dispatcher
	gate       *intent.Gate
	metrics    metrics.MetricsCollector
}

// NewChatHandler はChatHandlerを生成する。endpointはメトリクスのラベルに使用する。
func NewChatHandler(endpoint string, dispatcher Dispatcher, gate *intent.Gate, collector metrics.MetricsCollector) *ChatHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &ChatHandler{
		endpoint:   endpoint,
		dispatcher: dispatcher,
		gate:       gate,
		metrics:    collector,
	}
}

// ServeHTTP はクエリを受け取り、意図判定とディスパッチを行ってJSONで応答する。
// POST以外のメソッドは他の処理より先に405を返す。
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	persona := h.dispatcher.Persona()
	middleware.AddLogAttr(r.Context(), slog.String("persona", string(persona)))

	if r.Method != http.MethodPost {
		h.reject(w, http.StatusMethodNotAllowed, msgInvalidMethod, outcomeMethodNotAllowed)
		return
	}

	query, ok, err := parseQuery(w, r)
	if err != nil {
		h.reject(w, http.StatusBadRequest, msgInvalidJSON, outcomeInvalidJSON)
		return
	}
	if !ok {
		h.reject(w, http.StatusBadRequest, msgNoQuery, outcomeNoQuery)
		return
	}

	if h.gate != nil {
		switch h.gate.Classify(query) {
		case intent.Greeting:
			h.metrics.RecordChatRequest(h.endpoint, outcomeGreeting)
			middleware.WriteJSON(w, http.StatusOK, chatResponse{Response: msgGreeting})
			return
		case intent.OutOfDomain:
			h.reject(w, http.StatusBadRequest, msgOutOfDomain, outcomeOutOfDomain)
			return
		}
	}

	start := time.Now()
	text, err := h.dispatcher.Run(r.Context(), query)
	h.metrics.RecordCompletionLatency(string(persona), time.Since(start))
	if err != nil {
		h.fail(w, persona, err)
		return
	}

	h.metrics.RecordChatRequest(h.endpoint, outcomeSuccess)
	middleware.WriteJSON(w, http.StatusOK, chatResponse{Response: text})
}

func (h *ChatHandler) reject(w http.ResponseWriter, status int, message, outcome string) {
	h.metrics.RecordChatRequest(h.endpoint, outcome)
	middleware.WriteChatError(w, status, message)
}

// fail はディスパッチの失敗を500で返す。上流の詳細はログのみに出力する。
func (h *ChatHandler) fail(w http.ResponseWriter, persona prompt.Persona, err error) {
	message := msgInternalError
	kind := "internal"

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		message = llmErr.PublicMessage()
		kind = string(llmErr.Kind)
	}

	slog.Error("dispatch failed",
		slog.String("persona", string(persona)),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)

	h.metrics.RecordCompletionFailure(string(persona), kind)
	h.metrics.RecordChatRequest(h.endpoint, outcomeFailure)
	middleware.WriteChatError(w, http.StatusInternalServerError, message)
}

// parseQuery はボディをJSONオブジェクトとして読み、queryフィールドを返す。
// JSONオブジェクトでない場合はエラー、queryが文字列でないか空の場合はok=falseを返す。
func parseQuery(w http.ResponseWriter, r *http.Request) (query string, ok bool, err error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err != nil {
		return "", false, err
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false, err
	}
	// "null" はエラーにならずnilマップになる
	if fields == nil {
		return "", false, errors.New("body is not a JSON object")
	}

	query, ok = fields["query"].(string)
	if !ok || query == "" {
		return "", false, nil
	}
	return query, true, nil
}
