package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunSender はMailgunのメッセージ送信APIを使用するSender。
type MailgunSender struct {
	mg       *mailgun.MailgunImpl
	logger   *slog.Logger
	domain   string
	fromName string
}

// NewMailgunSender はMailgunSenderを生成する。
// 送信元は "{fromName} <mailgun@{domain}>" となる。
func NewMailgunSender(httpClient *http.Client, logger *slog.Logger, apiKey, domain, fromName string) *MailgunSender {
	mg := mailgun.NewMailgun(domain, apiKey)
	if httpClient != nil {
		mg.SetClient(httpClient)
	}
	return &MailgunSender{
		mg:       mg,
		logger:   logger,
		domain:   domain,
		fromName: fromName,
	}
}

// SetAPIBase は送信先のAPIベースURLを差し替える。テストで使用する。
func (s *MailgunSender) SetAPIBase(address string) {
	s.mg.SetAPIBase(address)
}

// From は送信元アドレスを返す。
func (s *MailgunSender) From() string {
	return fmt.Sprintf("%s <mailgun@%s>", s.fromName, s.domain)
}

// SendVerificationCode は認証コードのテキストメールを送信する。再送は行わない。
func (s *MailgunSender) SendVerificationCode(ctx context.Context, to, code string) error {
	msg := s.mg.NewMessage(s.From(), VerificationSubject, VerificationBody(code), to)

	_, id, err := s.mg.Send(ctx, msg)
	if err != nil {
		// ステータスを取得できない場合は -1
		status := mailgun.GetStatusFromErr(err)
		s.logger.Error("Mailgun APIの呼び出しに失敗しました",
			slog.Int("http_status", status),
			slog.String("error", err.Error()),
		)
		if status > 0 {
			return fmt.Errorf("mailgun returned status %d: %w", status, err)
		}
		return fmt.Errorf("failed to call mailgun: %w", err)
	}

	s.logger.Debug("認証コードメールを送信しました",
		slog.String("message_id", id),
	)
	return nil
}

var _ Sender = (*MailgunSender)(nil)
