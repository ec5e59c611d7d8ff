// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, account, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailRequired    = "EMAIL_REQUIRED"
	ErrCodeInvalidEmail     = "INVALID_EMAIL"
	ErrCodePhoneRequired    = "PHONE_REQUIRED"
	ErrCodeInvalidPhone     = "INVALID_PHONE"
	ErrCodePasswordRequired = "PASSWORD_REQUIRED"
	ErrCodeInvalidDate      = "INVALID_DATE"
	ErrCodeNameTooLong      = "NAME_TOO_LONG"
	ErrCodeEmailTaken       = "EMAIL_TAKEN"
	ErrCodePhoneTaken       = "PHONE_TAKEN"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeMailFailed       = "MAIL_FAILED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
)

// NewEmailRequiredError はメールアドレス未入力エラーを生成する。
func NewEmailRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailRequired,
		Message:  "メールアドレスは必須です。",
		Category: "validation",
		Action:   "メールアドレスを入力してください。",
	}
}

// NewInvalidEmailError は無効なメールアドレスエラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("無効なメールアドレスです: %s", email),
		Category: "validation",
		Action:   "正しい形式のメールアドレスを入力してください。",
	}
}

// NewPhoneRequiredError は電話番号未入力エラーを生成する。
func NewPhoneRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodePhoneRequired,
		Message:  "電話番号は必須です。",
		Category: "validation",
		Action:   "電話番号を入力してください。",
	}
}

// NewInvalidPhoneError は無効な電話番号エラーを生成する。
func NewInvalidPhoneError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhone,
		Message:  fmt.Sprintf("電話番号は%d文字以内で入力してください。", MaxPhoneNumberLength),
		Category: "validation",
		Action:   "電話番号を確認してください。",
	}
}

// NewPasswordRequiredError はパスワード未入力エラーを生成する。
func NewPasswordRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordRequired,
		Message:  "パスワードは必須です。",
		Category: "validation",
		Action:   "パスワードを入力してください。",
	}
}

// NewInvalidDateError は日付形式エラーを生成する。
func NewInvalidDateError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日付の形式が正しくありません: %s", field),
		Category: "validation",
		Action:   "YYYY-MM-DD形式で入力してください。",
	}
}

// NewNameTooLongError は氏名の文字数超過エラーを生成する。
func NewNameTooLongError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeNameTooLong,
		Message:  fmt.Sprintf("%sは%d文字以内で入力してください。", field, MaxNameLength),
		Category: "validation",
		Action:   "氏名を短くして再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "account",
		Action:   "別のメールアドレスを使用してください。",
	}
}

// NewPhoneTakenError は電話番号重複エラーを生成する。
func NewPhoneTakenError() *APIError {
	return &APIError{
		Code:     ErrCodePhoneTaken,
		Message:  "この電話番号は既に登録されています。",
		Category: "account",
		Action:   "別の電話番号を使用してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "account",
		Action:   "入力内容を確認してください。",
	}
}

// NewMailFailedError は認証コードメールの送信失敗エラーを生成する。
func NewMailFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeMailFailed,
		Message:  "認証コードメールの送信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから認証コードの再送信をお試しください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストの形式が正しくありません。",
		Category: "validation",
		Action:   "JSON形式で送信してください。",
	}
}
