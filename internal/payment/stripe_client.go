// Package payment はチェックアウトの調整と決済プロバイダ連携を提供する。
package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// PaymentIntentInput はPaymentIntent作成の入力。金額は最小通貨単位（セント）。
type PaymentIntentInput struct {
	AmountMinor int64
	Currency    string
	CustomerID  string
	OrderID     string
	UserID      string
}

// PaymentIntentResult は作成されたPaymentIntentの識別情報。
type PaymentIntentResult struct {
	ID           string
	ClientSecret string
}

// Gateway は決済プロバイダAPIの抽象。テストではモック実装に差し替える。
type Gateway interface {
	// CreateCustomer は決済プロバイダ側の顧客を作成し、顧客IDを返す。
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	// CreatePaymentIntent は注文に紐づくPaymentIntentを作成する。
	CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*PaymentIntentResult, error)
	// CreateEphemeralKey はモバイルSDKが顧客情報にアクセスするための
	// 一時キーを作成し、そのシークレットを返す。
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)
}

// StripeGateway はStripe APIクライアントによるGateway実装。
// グローバルのstripe.Keyには依存せず、専用クライアントを保持する。
type StripeGateway struct {
	api        *client.API
	apiVersion string
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway はStripeGatewayの新しいインスタンスを生成する。
// apiVersionはEphemeralKey作成時にモバイルSDKへ渡すAPIバージョン。
func NewStripeGateway(secretKey, apiVersion string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:        api,
		apiVersion: apiVersion,
	}
}

// CreateCustomer はStripe顧客を作成する。
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	params.AddMetadata("user_id", userID)

	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("Stripe顧客の作成に失敗しました: %w", err)
	}

	return customer.ID, nil
}

// CreatePaymentIntent はPaymentIntentを作成する。
// Webhookで注文を特定できるようメタデータに注文IDとユーザーIDを埋め込む。
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*PaymentIntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(input.AmountMinor),
		Currency: stripe.String(input.Currency),
		Customer: stripe.String(input.CustomerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", input.OrderID)
	params.AddMetadata("user_id", input.UserID)

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("PaymentIntentの作成に失敗しました: %w", err)
	}

	return &PaymentIntentResult{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// CreateEphemeralKey は顧客スコープの一時キーを作成する。
func (g *StripeGateway) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	params := &stripe.EphemeralKeyParams{
		Params:        stripe.Params{Context: ctx},
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(g.apiVersion),
	}

	key, err := g.api.EphemeralKeys.New(params)
	if err != nil {
		return "", fmt.Errorf("一時キーの作成に失敗しました: %w", err)
	}

	return key.Secret, nil
}
