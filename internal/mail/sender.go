// Package mail は認証コードメールの送信機能を提供する。
// 送信先のメールプロバイダ（Mailgun / Amazon SES）は設定で切り替える。
package mail

import (
	"context"
	"fmt"
)

// 認証コードメールの件名と本文
const (
	VerificationSubject = "Verification Code"
	verificationBodyFmt = "Your verification code is: %s"
)

// Sender は認証コードメールの送信インターフェース。
// 送信失敗時の再送は行わない。
type Sender interface {
	SendVerificationCode(ctx context.Context, to, code string) error
}

// VerificationBody は認証コードメールの本文を返す。
func VerificationBody(code string) string {
	return fmt.Sprintf(verificationBodyFmt, code)
}
