package prompt

import (
	_ "embed"
	"fmt"
)

// Persona はプロンプトの人格（口調・役割）を識別する。
type Persona string

const (
	// PersonaPirate はモンキーアイランド風の海賊キャラクター。財務系クエリ向けエンドポイントで使用する。
	PersonaPirate Persona = "pirate"
	// PersonaBanking は銀行カスタマーサービス向けのキャラクター。
	PersonaBanking Persona = "banking"
)

//go:embed personas/pirate.tmpl
var pirateText string

//go:embed personas/banking.tmpl
var bankingText string

var personaTemplates = map[Persona]*Template{
	PersonaPirate:  Must(string(PersonaPirate), pirateText),
	PersonaBanking: Must(string(PersonaBanking), bankingText),
}

// Personas は定義済みの全Personaを返す。
func Personas() []Persona {
	return []Persona{PersonaPirate, PersonaBanking}
}

// Lookup は指定Personaのテンプレートを返す。
func Lookup(p Persona) (*Template, error) {
	t, ok := personaTemplates[p]
	if !ok {
		return nil, fmt.Errorf("unknown persona: %q", p)
	}
	return t, nil
}
