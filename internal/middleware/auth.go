// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストに内部ユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// UserResolver は外部IdPのユーザーIDから内部ユーザーを解決するインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserResolver interface {
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークン（IdPが発行した
// RS256署名のセッションJWT）を検証するミドルウェアを返す。
// subクレームの外部ユーザーIDを内部ユーザーに解決し、
// 内部ユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(publicKey *rsa.PublicKey, resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			token := bearerToken(r)
			if token == "" {
				WriteUnauthorizedResponse(w)
				return
			}

			// 2. JWTの署名と有効期限を検証
			claims := &jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(token, claims,
				func(t *jwt.Token) (interface{}, error) { return publicKey, nil },
				jwt.WithValidMethods([]string{"RS256"}),
			)
			if err != nil {
				WriteUnauthorizedResponse(w)
				return
			}
			if claims.Subject == "" {
				WriteUnauthorizedResponse(w)
				return
			}

			// 3. 外部ユーザーIDを内部ユーザーに解決
			user, err := resolver.FindByExternalID(r.Context(), claims.Subject)
			if err != nil {
				slog.Error("failed to resolve user",
					slog.String("error", err.Error()),
				)
				WriteUnauthorizedResponse(w)
				return
			}
			if user == nil {
				// IdP側には存在するがWebhook未着などでローカルに未作成のケース
				WriteUnauthorizedResponse(w)
				return
			}

			// 4. 認証済みユーザーIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseRSAPublicKey はPEM形式のRSA公開鍵を解析する。
// 起動時に1回呼び出し、結果をミドルウェアに渡す。
func ParseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	return key, nil
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}

// UserIDFromContext はリクエストコンテキストから内部ユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
