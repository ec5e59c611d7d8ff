// Package llm はホスト型LLMの補完APIへのアダプタを提供する。
// GroqのOpenAI互換エンドポイントを openai-go SDK 経由で呼び出す。
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Completer はレンダリング済みプロンプトから補完テキストを得るインターフェース。
// 失敗時は *Error を返す。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GroqConfig はGroqクライアントの設定。
type GroqConfig struct {
	APIKey     string        // 未設定でも生成できる。呼び出し時に上流の認証エラーになる
	Model      string        // 例: "llama3-70b-8192"
	BaseURL    string        // 例: "https://api.groq.com/openai/v1"
	Timeout    time.Duration // 0 の場合はトランスポートの既定値
	HTTPClient *http.Client  // テスト用（省略可）
}

// GroqClient はGroqの補完APIクライアント。
// 起動時に1回生成し、以後は読み取り専用で複数リクエストから同時に利用する。
type GroqClient struct {
	model  string
	client openai.Client
}

// NewGroqClient はGroqClientを生成する。
// 再試行は行わないため、SDKのリトライ回数は0に固定する。
func NewGroqClient(cfg GroqConfig) *GroqClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &GroqClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Model は設定されたモデル名を返す。
func (c *GroqClient) Model() string {
	return c.model
}

// Complete はプロンプトを1件のユーザーメッセージとして送信し、最初の候補のテキストを返す。
func (c *GroqClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Err: errors.New("response contained no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}

// compile-time interface check
var _ Completer = (*GroqClient)(nil)
