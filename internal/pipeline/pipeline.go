// Package pipeline はクエリをプロンプトに展開してLLMに渡す2段構成のディスパッチパイプラインを提供する。
package pipeline

import (
	"context"
	"fmt"

	"github.com/hitoshi/chatgate/internal/llm"
	"github.com/hitoshi/chatgate/internal/prompt"
)

// 失敗した段階
const (
	StageRender   = "render"
	StageComplete = "complete"
)

// Error はパイプラインのどの段階で失敗したかを保持するエラー。
// 補完段階の失敗では Err に *llm.Error が入る。
type Error struct {
	Persona prompt.Persona
	Stage   string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("pipeline %s: %s failed: %v", e.Persona, e.Stage, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Pipeline はテンプレート展開 → 補完呼び出しを直列に行う。
// キャッシュやタイムアウトの上乗せは行わない。
type Pipeline struct {
	persona   prompt.Persona
	template  *prompt.Template
	completer llm.Completer
}

// New はPipelineを生成する。
func New(persona prompt.Persona, template *prompt.Template, completer llm.Completer) *Pipeline {
	return &Pipeline{
		persona:   persona,
		template:  template,
		completer: completer,
	}
}

// Persona はこのパイプラインのPersonaを返す。
func (p *Pipeline) Persona() prompt.Persona {
	return p.persona
}

// Run はクエリをテンプレートに埋め込み、補完結果のテキストをそのまま返す。
func (p *Pipeline) Run(ctx context.Context, query string) (string, error) {
	rendered, err := p.template.Render(query)
	if err != nil {
		return "", &Error{Persona: p.persona, Stage: StageRender, Err: err}
	}

	text, err := p.completer.Complete(ctx, rendered)
	if err != nil {
		return "", &Error{Persona: p.persona, Stage: StageComplete, Err: err}
	}

	return text, nil
}
