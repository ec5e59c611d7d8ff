package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"
)

// Kind は補完呼び出しの失敗種別を表す。
type Kind string

const (
	// KindUnavailable はネットワーク障害、タイムアウト、上流の5xxなど到達できなかった失敗。
	KindUnavailable Kind = "unavailable"
	// KindRejected は認証エラー、レート制限、不正リクエストなど上流が4xxで拒否した失敗。
	KindRejected Kind = "rejected"
	// KindMalformed は上流の応答に補完結果が含まれていなかった失敗。
	KindMalformed Kind = "malformed"
)

// Error は補完クライアントが返す型付きエラー。
// 呼び出し元は errors.As で取り出し、Kind に応じて扱いを決める。
type Error struct {
	Kind       Kind
	StatusCode int   // 上流のHTTPステータス（不明な場合は0）
	Err        error // 元のエラー（ログ用。クライアントには返さない）
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage はクライアントに返してよい固定メッセージを返す。
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindRejected:
		return "completion request rejected"
	case KindMalformed:
		return "malformed completion response"
	default:
		return "completion service unavailable"
	}
}

// classify はSDKから返されたエラーを型付きエラーに変換する。
func classify(err error) *Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := KindRejected
		if apiErr.StatusCode >= http.StatusInternalServerError {
			kind = KindUnavailable
		}
		return &Error{Kind: kind, StatusCode: apiErr.StatusCode, Err: err}
	}

	// ネットワーク障害、タイムアウト、キャンセル
	return &Error{Kind: KindUnavailable, Err: err}
}
