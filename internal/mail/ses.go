package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI はSESクライアントのうち送信に使用するメソッド。テストで差し替える。
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender はAmazon SESを使用するSender。
type SESSender struct {
	client SESAPI
	logger *slog.Logger
	from   string
}

// NewSESSender はSESSenderを生成する。
func NewSESSender(client SESAPI, logger *slog.Logger, from string) *SESSender {
	return &SESSender{client: client, logger: logger, from: from}
}

// NewSESSenderFromRegion はAWSのデフォルト認証情報チェーンでSESクライアントを構築する。
func NewSESSenderFromRegion(ctx context.Context, logger *slog.Logger, region, from string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSESSender(ses.NewFromConfig(cfg), logger, from), nil
}

// SendVerificationCode は認証コードをテキストメールで送信する。
func (s *SESSender) SendVerificationCode(ctx context.Context, to, code string) error {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(VerificationSubject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(VerificationBody(code))},
			},
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		s.logger.Error("SESでのメール送信に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	s.logger.Debug("SESでメールを送信しました",
		slog.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}

var _ Sender = (*SESSender)(nil)
