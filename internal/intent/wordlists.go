package intent

// DefaultGreetings は海賊ペルソナ向けの挨拶フレーズ。
var DefaultGreetings = NewWordList(
	"ahoy",
	"yo-ho-ho",
	"avast",
	"ahoy there",
	"greetings, matey",
	"yo, scallywag",
	"shiver me timbers",
	"how be ye?",
	"arrr",
)

// DefaultKeywords は財務系ドメインのキーワード。
// "expenses o  the crew" の空白2つは既存の挙動として維持する。
var DefaultKeywords = NewWordList(
	"booty",
	"doubloons",
	"treasure",
	"gold",
	"loot",
	"financial woes",
	"ship management",
	"expenses o  the crew",
	"monthly plunder",
	"pirate savings",
	"grog fund",
	"sea chest",
)
