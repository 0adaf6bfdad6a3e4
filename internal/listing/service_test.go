package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// --- モック ---

type mockListingRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Listing, error)
	createFn   func(ctx context.Context, listing *model.Listing) error
	updateFn   func(ctx context.Context, listing *model.Listing) error
	deleteFn   func(ctx context.Context, id string) error
	listFeedFn func(ctx context.Context, userID string, limit int) ([]*model.Listing, error)
}

func (m *mockListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockListingRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Listing, error) {
	return nil, nil
}
func (m *mockListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	if m.createFn != nil {
		return m.createFn(ctx, listing)
	}
	return nil
}
func (m *mockListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, listing)
	}
	return nil
}
func (m *mockListingRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}
func (m *mockListingRepo) ListBySeller(ctx context.Context, sellerID string) ([]*model.Listing, error) {
	return nil, nil
}
func (m *mockListingRepo) ListFeed(ctx context.Context, userID string, limit int) ([]*model.Listing, error) {
	if m.listFeedFn != nil {
		return m.listFeedFn(ctx, userID, limit)
	}
	return nil, nil
}
func (m *mockListingRepo) ClaimForCheckout(ctx context.Context, ids []string) ([]string, error) {
	return nil, nil
}
func (m *mockListingRepo) ReleaseFromCheckout(ctx context.Context, ids []string) ([]string, error) {
	return nil, nil
}
func (m *mockListingRepo) MarkSold(ctx context.Context, ids []string) error { return nil }
func (m *mockListingRepo) ListStuckInCheckout(ctx context.Context, olderThan time.Duration) ([]string, error) {
	return nil, nil
}

// mockSanitizer は入力をそのまま返す。
type mockSanitizer struct{}

func (mockSanitizer) Sanitize(input string) string { return input }

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != code {
		t.Errorf("error = %v, want code %s", err, code)
	}
}

// --- テスト ---

// TestService_Create_InvalidPrice_ReturnsError は不正な価格の出品作成が
// 拒否されることを検証する。
func TestService_Create_InvalidPrice_ReturnsError(t *testing.T) {
	svc := NewService(&mockListingRepo{}, mockSanitizer{})

	tests := []struct {
		name  string
		price decimal.Decimal
	}{
		{"ゼロ", price("0")},
		{"負の値", price("-1.00")},
		{"小数点以下3桁", price("9.999")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "seller-1", CreateInput{
				Title: "vintage denim",
				Price: tt.price,
			})
			assertAPIErrorCode(t, err, model.ErrCodeInvalidPrice)
		})
	}
}

// TestService_Create_InitialStatusIsStaging は新規出品がSTAGING状態で作成
// されることを検証する。
func TestService_Create_InitialStatusIsStaging(t *testing.T) {
	var created *model.Listing
	listingRepo := &mockListingRepo{
		createFn: func(ctx context.Context, listing *model.Listing) error {
			created = listing
			return nil
		},
	}

	svc := NewService(listingRepo, mockSanitizer{})

	listing, err := svc.Create(context.Background(), "seller-1", CreateInput{
		Title: "vintage denim",
		Price: price("25.00"),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created == nil {
		t.Fatal("expected listing to be persisted")
	}
	if listing.Status != model.ListingStatusStaging {
		t.Errorf("Status = %s, want %s", listing.Status, model.ListingStatusStaging)
	}
	if listing.ID == "" {
		t.Error("expected generated listing ID")
	}
}

// TestService_Update_NotOwner_ReturnsForbidden は他人の出品の更新が拒否される
// ことを検証する。
func TestService_Update_NotOwner_ReturnsForbidden(t *testing.T) {
	listingRepo := &mockListingRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Listing, error) {
			return &model.Listing{ID: id, SellerID: "seller-other"}, nil
		},
	}

	svc := NewService(listingRepo, mockSanitizer{})

	newTitle := "new title"
	_, err := svc.Update(context.Background(), "user-1", "l-1", UpdateInput{Title: &newTitle})
	assertAPIErrorCode(t, err, model.ErrCodeListingNotOwned)
}

// TestService_Update_InvalidPrice_ReturnsError は更新時も価格検証が働くこと
// を検証する。
func TestService_Update_InvalidPrice_ReturnsError(t *testing.T) {
	listingRepo := &mockListingRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Listing, error) {
			return &model.Listing{ID: id, SellerID: "user-1", Price: price("10.00")}, nil
		},
	}

	svc := NewService(listingRepo, mockSanitizer{})

	bad := price("-5.00")
	_, err := svc.Update(context.Background(), "user-1", "l-1", UpdateInput{Price: &bad})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidPrice)
}

// TestService_Delete_NotOwner_ReturnsForbidden は他人の出品の削除が拒否される
// ことを検証する。
func TestService_Delete_NotOwner_ReturnsForbidden(t *testing.T) {
	deleteCalled := false
	listingRepo := &mockListingRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Listing, error) {
			return &model.Listing{ID: id, SellerID: "seller-other"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleteCalled = true
			return nil
		},
	}

	svc := NewService(listingRepo, mockSanitizer{})

	err := svc.Delete(context.Background(), "user-1", "l-1")
	assertAPIErrorCode(t, err, model.ErrCodeListingNotOwned)
	if deleteCalled {
		t.Error("expected no delete for foreign listing")
	}
}

// TestService_Feed_ClampsLimit はフィード取得件数の上下限が適用されることを
// 検証する。
func TestService_Feed_ClampsLimit(t *testing.T) {
	var gotLimit int
	listingRepo := &mockListingRepo{
		listFeedFn: func(ctx context.Context, userID string, limit int) ([]*model.Listing, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	svc := NewService(listingRepo, mockSanitizer{})

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"未指定はデフォルト", 0, DefaultFeedLimit},
		{"負の値はデフォルト", -5, DefaultFeedLimit},
		{"上限超過は上限", 500, MaxFeedLimit},
		{"範囲内はそのまま", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Feed(context.Background(), "user-1", tt.limit); err != nil {
				t.Fatalf("Feed returned error: %v", err)
			}
			if gotLimit != tt.want {
				t.Errorf("limit = %d, want %d", gotLimit, tt.want)
			}
		})
	}
}

// TestService_Get_UnknownListing_ReturnsNotFound は未登録IDの照会が未検出
// エラーになることを検証する。
func TestService_Get_UnknownListing_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockListingRepo{}, mockSanitizer{})

	_, err := svc.Get(context.Background(), "l-missing")
	assertAPIErrorCode(t, err, model.ErrCodeListingNotFound)
}
