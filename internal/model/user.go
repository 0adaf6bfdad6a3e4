// Package model はドメインモデルを定義する。
package model

import "time"

// User はマーケットプレイスの利用ユーザーを表す。
// 外部IdP（Clerk）のWebhookによって作成・更新・削除される。
type User struct {
	ID               string
	ExternalID       string // IdP側のユーザーID（JWTのsubクレーム）
	Email            string
	Username         string
	Bio              string
	AvatarPath       string
	StripeCustomerID string // 初回チェックアウト時に遅延作成される。未作成の場合は空文字
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Profile はプロフィール表示用の集約。フォロー数を含む。
// キャッシュ対象となるためJSONタグを持つ。
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Bio            string    `json:"bio"`
	AvatarPath     string    `json:"avatar_path"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Follow はユーザー間のフォロー関係を表す。
// (FollowerID, FolloweeID) の組み合わせは一意。
type Follow struct {
	ID         string
	FollowerID string
	FolloweeID string
	CreatedAt  time.Time
}
