package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// mockEventRepo はStripeEventRepositoryのモック実装。
type mockEventRepo struct {
	deleteOlderThanFn func(ctx context.Context, retention time.Duration) (int64, error)
}

func (m *mockEventRepo) Insert(ctx context.Context, event *model.StripeEvent) error { return nil }
func (m *mockEventRepo) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	return true, nil
}
func (m *mockEventRepo) MarkProcessed(ctx context.Context, providerEventID string) error { return nil }
func (m *mockEventRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if m.deleteOlderThanFn != nil {
		return m.deleteOlderThanFn(ctx, retention)
	}
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestCleanupJob_Run_DeletesWithRetention は保持日数が期間に変換されて渡されることを検証する。
func TestCleanupJob_Run_DeletesWithRetention(t *testing.T) {
	var gotRetention time.Duration
	repo := &mockEventRepo{
		deleteOlderThanFn: func(ctx context.Context, retention time.Duration) (int64, error) {
			gotRetention = retention
			return 12, nil
		},
	}

	job := NewCleanupJob(repo, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := 90 * 24 * time.Hour
	if gotRetention != want {
		t.Errorf("retention = %v, want %v", gotRetention, want)
	}
}

// TestCleanupJob_Run_CustomRetentionDays は保持日数の変更が反映されることを検証する。
func TestCleanupJob_Run_CustomRetentionDays(t *testing.T) {
	var gotRetention time.Duration
	repo := &mockEventRepo{
		deleteOlderThanFn: func(ctx context.Context, retention time.Duration) (int64, error) {
			gotRetention = retention
			return 0, nil
		},
	}

	job := NewCleanupJob(repo, testLogger())
	job.RetentionDays = 30

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := 30 * 24 * time.Hour
	if gotRetention != want {
		t.Errorf("retention = %v, want %v", gotRetention, want)
	}
}

// TestCleanupJob_Run_NothingToDelete_Succeeds は削除対象がなくても成功することを検証する。
func TestCleanupJob_Run_NothingToDelete_Succeeds(t *testing.T) {
	repo := &mockEventRepo{
		deleteOlderThanFn: func(ctx context.Context, retention time.Duration) (int64, error) {
			return 0, nil
		},
	}

	job := NewCleanupJob(repo, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// TestCleanupJob_Run_RepositoryError_ReturnsError は削除失敗時にエラーを返すことを検証する。
func TestCleanupJob_Run_RepositoryError_ReturnsError(t *testing.T) {
	repo := &mockEventRepo{
		deleteOlderThanFn: func(ctx context.Context, retention time.Duration) (int64, error) {
			return 0, errors.New("db down")
		},
	}

	job := NewCleanupJob(repo, testLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestNewCleanupJob_DefaultRetention はデフォルトの保持日数が90日であることを検証する。
func TestNewCleanupJob_DefaultRetention(t *testing.T) {
	job := NewCleanupJob(&mockEventRepo{}, testLogger())

	if job.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", job.RetentionDays)
	}
}
