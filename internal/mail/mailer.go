// Package mail はトランザクションメールの送信を提供する。
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Sender はトランザクションメール送信のインターフェース。
type Sender interface {
	// SendWelcome はアカウント作成時のウェルカムメールを送信する。
	SendWelcome(ctx context.Context, to, username string) error
	// SendOrderConfirmation は決済完了時の注文確認メールを送信する。
	SendOrderConfirmation(ctx context.Context, to, orderID, total string) error
}

// ResendMailer はResend APIによるSender実装。
type ResendMailer struct {
	client *resend.Client
	from   string
}

var _ Sender = (*ResendMailer)(nil)

// NewResendMailer はResendMailerの新しいインスタンスを生成する。
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// SendWelcome はウェルカムメールを送信する。
func (m *ResendMailer) SendWelcome(ctx context.Context, to, username string) error {
	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "ThriftSwipeへようこそ",
		Html: fmt.Sprintf(
			"<p>%sさん、ThriftSwipeへようこそ。</p><p>スワイプしてお気に入りの一点物を見つけましょう。</p>",
			username,
		),
	}

	if _, err := m.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("ウェルカムメールの送信に失敗しました: %w", err)
	}

	return nil
}

// SendOrderConfirmation は注文確認メールを送信する。
func (m *ResendMailer) SendOrderConfirmation(ctx context.Context, to, orderID, total string) error {
	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "ご注文ありがとうございます",
		Html: fmt.Sprintf(
			"<p>ご注文（%s）の決済が完了しました。</p><p>合計金額: $%s</p>",
			orderID, total,
		),
	}

	if _, err := m.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("注文確認メールの送信に失敗しました: %w", err)
	}

	return nil
}

// NoopMailer はメールを送信せずログに記録するSender実装。
// APIキー未設定の開発環境で使用する。
type NoopMailer struct{}

var _ Sender = NoopMailer{}

// SendWelcome はログ出力のみ行う。
func (NoopMailer) SendWelcome(ctx context.Context, to, username string) error {
	slog.Info("mail skipped (no api key)",
		slog.String("kind", "welcome"),
		slog.String("to", to),
	)
	return nil
}

// SendOrderConfirmation はログ出力のみ行う。
func (NoopMailer) SendOrderConfirmation(ctx context.Context, to, orderID, total string) error {
	slog.Info("mail skipped (no api key)",
		slog.String("kind", "order_confirmation"),
		slog.String("to", to),
		slog.String("order_id", orderID),
	)
	return nil
}
