package pipeline

import (
	"fmt"

	"github.com/hitoshi/chatgate/internal/llm"
	"github.com/hitoshi/chatgate/internal/prompt"
)

// Registry はPersonaごとのPipelineを保持する。
// 全Pipelineは同じCompleterを共有し、テンプレートのみが異なる。
// 起動時に構築した後は変更しない。
type Registry struct {
	pipelines map[prompt.Persona]*Pipeline
}

// NewRegistry は指定Personaそれぞれについて埋め込みテンプレートからPipelineを構築する。
func NewRegistry(completer llm.Completer, personas ...prompt.Persona) (*Registry, error) {
	r := &Registry{pipelines: make(map[prompt.Persona]*Pipeline, len(personas))}

	for _, p := range personas {
		tmpl, err := prompt.Lookup(p)
		if err != nil {
			return nil, fmt.Errorf("failed to build pipeline: %w", err)
		}
		r.pipelines[p] = New(p, tmpl, completer)
	}

	return r, nil
}

// Get は指定PersonaのPipelineを返す。
func (r *Registry) Get(p prompt.Persona) (*Pipeline, error) {
	pl, ok := r.pipelines[p]
	if !ok {
		return nil, fmt.Errorf("no pipeline registered for persona %q", p)
	}
	return pl, nil
}
