package model

import "time"

// StripeEvent は受信した決済Webhookイベントの追記専用ログ。
// プロバイダのイベントIDを自然な冪等キーとして使用し、
// at-least-once配信による重複を検出する。
// ProcessedAtは状態反映が完了した時刻で、nilの間は未処理として
// 再配信時に処理をやり直す対象になる。
type StripeEvent struct {
	ID              string
	ProviderEventID string
	EventType       string
	Payload         []byte
	ReceivedAt      time.Time
	ProcessedAt     *time.Time
}
