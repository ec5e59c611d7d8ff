// Package model はドメインモデルを定義する。
package model

import "time"

// 制約値
const (
	MaxEmailLength            = 254
	MaxPhoneNumberLength      = 15
	MaxNameLength             = 255
	MaxVerificationCodeLength = 10
)

// User はサービス利用ユーザーの認証情報を表す。
// メールアドレスと電話番号はそれぞれ全ユーザーで一意。
type User struct {
	ID           string
	Email        string
	PhoneNumber  string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	IsVerified   bool
	DateJoined   time.Time

	// VerificationCode は発行済みの認証コード。未発行の場合はnil。
	VerificationCode *string
	// CodeExpiry は認証コードの有効期限。保存のみで、期限の判定は行わない。
	CodeExpiry *time.Time
}

// Profile はユーザーの付加情報を表す。Userと1対1で紐付く。
type Profile struct {
	UserID      string
	FirstName   string
	LastName    string
	Address     string
	DateOfBirth time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName は "名 姓" 形式の氏名を返す。
func (p *Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}
