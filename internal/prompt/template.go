// Package prompt はLLMに送信するプロンプトテンプレートを提供する。
// テンプレートは起動時に1回だけ構築され、以後は読み取り専用として全リクエストで共有される。
package prompt

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"
)

// SlotName はテンプレート内の唯一の置換箇所の名前。
const SlotName = "query_str"

// slotPattern は {{.query_str}} 形式の参照にマッチする。
var slotPattern = regexp.MustCompile(`\{\{\s*\.` + SlotName + `\s*\}\}`)

// Template はクエリ文字列を1箇所に埋め込む固定のプロンプトテンプレート。
// 構築後は変更されないため、複数goroutineから同時に Render してよい。
type Template struct {
	name string
	text string
	tmpl *template.Template
}

// New はテンプレート文字列から Template を生成する。
// {{.query_str}} がちょうど1回出現しない場合、または構文が不正な場合はエラーを返す。
func New(name, text string) (*Template, error) {
	if n := len(slotPattern.FindAllStringIndex(text, -1)); n != 1 {
		return nil, fmt.Errorf("template %q must reference {{.%s}} exactly once, found %d", name, SlotName, n)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	return &Template{name: name, text: text, tmpl: tmpl}, nil
}

// Must は New を呼び出し、エラーの場合はpanicする。
// 埋め込みテンプレートの初期化専用。
func Must(name, text string) *Template {
	t, err := New(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name はテンプレート名を返す。
func (t *Template) Name() string {
	return t.name
}

// Text は置換前のテンプレート文字列を返す。
func (t *Template) Text() string {
	return t.text
}

// Render はクエリを置換箇所に埋め込んだプロンプトを返す。
// エスケープや長さ制限は行わない。同じ入力に対しては常に同じ出力を返す。
func (t *Template) Render(query string) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, map[string]string{SlotName: query}); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", t.name, err)
	}
	return buf.String(), nil
}
