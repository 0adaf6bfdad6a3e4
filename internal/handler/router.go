package handler

import (
	"crypto/rsa"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/thriftswipe/internal/middleware"
	"github.com/hitoshi/thriftswipe/internal/storage"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	AuthPublicKey     *rsa.PublicKey
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ユーザー・プロフィール
	UserService UserServiceInterface

	// 出品・エンゲージメント
	ListingService    ListingServiceInterface
	EngagementService EngagementServiceInterface

	// 注文・チェックアウト
	OrderService    OrderServiceInterface
	CheckoutService CheckoutServiceInterface

	// 画像アップロード
	Presigner storage.Presigner

	// Webhook
	StripeWebhookHandler   *StripeWebhookHandler
	IdentityWebhookHandler *IdentityWebhookHandler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Auth → RateLimit(General)
//
// Webhookルート（/webhooks/*）は独自の署名検証を行うため認証ミドルウェアの外に
// 配置する。ヘルスチェックも同様。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	userHandler := NewUserHandler(deps.UserService)
	listingHandler := NewListingHandler(deps.ListingService)
	engagementHandler := NewEngagementHandler(deps.EngagementService)
	orderHandler := NewOrderHandler(deps.OrderService)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutService)
	uploadHandler := NewUploadHandler(deps.Presigner)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", deps.StripeWebhookHandler.Handle)
		r.Post("/identity", deps.IdentityWebhookHandler.Handle)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.AuthPublicKey, deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// スワイプフィード
		r.Get("/api/feed", listingHandler.Feed)

		// 出品管理
		r.Route("/api/listings", func(r chi.Router) {
			r.Post("/", listingHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.Get)
				r.Patch("/", listingHandler.Update)
				r.Delete("/", listingHandler.Delete)

				// エンゲージメント（カート・いいね・興味なし・保存）
				r.Post("/cart", engagementHandler.AddCartItem)
				r.Delete("/cart", engagementHandler.RemoveCartItem)
				r.Post("/like", engagementHandler.AddLike)
				r.Delete("/like", engagementHandler.RemoveLike)
				r.Post("/dislike", engagementHandler.AddDislike)
				r.Delete("/dislike", engagementHandler.RemoveDislike)
				r.Post("/save", engagementHandler.AddSavedItem)
				r.Delete("/save", engagementHandler.RemoveSavedItem)
			})
		})

		// エンゲージメント一覧
		r.Get("/api/cart", engagementHandler.ListCart)
		r.Get("/api/likes", engagementHandler.ListLikes)
		r.Get("/api/saved", engagementHandler.ListSaved)

		// ユーザー・プロフィール
		r.Route("/api/users", func(r chi.Router) {
			r.Patch("/me", userHandler.UpdateProfile)
			r.Get("/me/listings", listingHandler.ListMine)
			r.Get("/{username}", userHandler.GetProfile)
			r.Post("/{id}/follow", userHandler.Follow)
			r.Delete("/{id}/follow", userHandler.Unfollow)
		})

		// 注文
		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.Post("/{id}/fail", checkoutHandler.FailCheckout)
		})

		// チェックアウト（決済プロバイダAPI呼び出しを伴うため専用レート制限）
		r.With(deps.RateLimiter.CheckoutMiddleware()).Post("/api/checkout", checkoutHandler.Checkout)

		// 画像アップロードURL発行
		r.Route("/api/uploads", func(r chi.Router) {
			r.Post("/listing-image", uploadHandler.PresignListingImage)
			r.Post("/avatar", uploadHandler.PresignAvatar)
		})
	})

	return r
}
