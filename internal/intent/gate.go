// Package intent はクエリを挨拶・対象ドメイン内・対象ドメイン外に分類する簡易ゲートを提供する。
package intent

import "strings"

// Intent はクエリの分類結果を表す。
type Intent int

const (
	// InDomain は対象ドメインのキーワードを含むクエリ。パイプラインに渡す。
	InDomain Intent = iota
	// Greeting は挨拶を含むクエリ。定型文で応答する。
	Greeting
	// OutOfDomain は対象ドメインのキーワードを含まないクエリ。拒否する。
	OutOfDomain
)

// String はIntentの名前を返す。
func (i Intent) String() string {
	switch i {
	case Greeting:
		return "greeting"
	case OutOfDomain:
		return "out_of_domain"
	default:
		return "in_domain"
	}
}

// WordList は小文字フレーズの固定リスト。構築後は変更しない。
type WordList struct {
	phrases []string
}

// NewWordList はフレーズを小文字化してWordListを生成する。
func NewWordList(phrases ...string) WordList {
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return WordList{phrases: lowered}
}

// Phrases はフレーズのコピーを返す。
func (w WordList) Phrases() []string {
	out := make([]string, len(w.phrases))
	copy(out, w.phrases)
	return out
}

// Contains はいずれかのフレーズがtextの部分文字列として現れるかを返す。
// textは小文字化済みであること。
//
// トークン単位ではなく部分文字列で判定するため、無関係な単語の一部に
// フレーズが含まれていても一致する（例: "marigold" は "gold" に一致する）。
func (w WordList) Contains(text string) bool {
	for _, p := range w.phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Gate は挨拶リストとドメインキーワードリストによる分類器。
type Gate struct {
	Greetings WordList
	Keywords  WordList
}

// NewGate はGateを生成する。
func NewGate(greetings, keywords WordList) *Gate {
	return &Gate{Greetings: greetings, Keywords: keywords}
}

// NewDefaultGate は既定の挨拶リストとキーワードリストでGateを生成する。
func NewDefaultGate() *Gate {
	return NewGate(DefaultGreetings, DefaultKeywords)
}

// Classify はクエリを分類する。
// 判定順: 挨拶を含めばGreeting（キーワードを含んでいても優先）→
// キーワードを1つも含まなければOutOfDomain → それ以外はInDomain。
func (g *Gate) Classify(query string) Intent {
	lowered := strings.ToLower(query)

	if g.Greetings.Contains(lowered) {
		return Greeting
	}
	if !g.Keywords.Contains(lowered) {
		return OutOfDomain
	}
	return InDomain
}
