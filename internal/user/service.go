// Package user はプロフィール・フォロー・IdP連携のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/thriftswipe/internal/cache"
	"github.com/hitoshi/thriftswipe/internal/metrics"
	"github.com/hitoshi/thriftswipe/internal/model"
	"github.com/hitoshi/thriftswipe/internal/repository"
	"github.com/hitoshi/thriftswipe/internal/security"
)

// WelcomeMailer はユーザー作成時のウェルカムメール送信インターフェース。
// mail.Senderの部分集合として定義する。
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, to, username string) error
}

// Service はユーザー管理のサービス層。
// プロフィール取得・更新、フォロー、IdP Webhookの適用を提供する。
type Service struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	cache      cache.ProfileCache
	sanitizer  security.ContentSanitizerService
	mailer     WelcomeMailer
	collector  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	profileCache cache.ProfileCache,
	sanitizer security.ContentSanitizerService,
	mailer WelcomeMailer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo:   userRepo,
		followRepo: followRepo,
		cache:      profileCache,
		sanitizer:  sanitizer,
		mailer:     mailer,
		collector:  collector,
	}
}

// GetProfile はユーザー名でプロフィールを取得する。
// キャッシュヒット時はDBに触れず、ミス時はDBから組み立ててキャッシュする。
func (s *Service) GetProfile(ctx context.Context, username string) (*model.Profile, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, username)
		if err != nil {
			// キャッシュ障害は読み取りの失敗にしない
			slog.Warn("profile cache read failed", slog.String("error", err.Error()))
		}
		if cached != nil {
			s.collector.RecordProfileCacheHit()
			return cached, nil
		}
		s.collector.RecordProfileCacheMiss()
	}

	profile, err := s.buildProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, profile); err != nil {
			slog.Warn("profile cache write failed", slog.String("error", err.Error()))
		}
	}

	return profile, nil
}

// buildProfile はDBからプロフィールを組み立てる。
func (s *Service) buildProfile(ctx context.Context, username string) (*model.Profile, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	followers, err := s.followRepo.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロワー数の取得に失敗しました: %w", err)
	}
	following, err := s.followRepo.CountFollowing(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロー数の取得に失敗しました: %w", err)
	}

	return &model.Profile{
		ID:             user.ID,
		Username:       user.Username,
		Bio:            user.Bio,
		AvatarPath:     user.AvatarPath,
		FollowerCount:  followers,
		FollowingCount: following,
		CreatedAt:      user.CreatedAt,
	}, nil
}

// UpdateProfileInput はプロフィール更新の入力。nilのフィールドは変更しない。
type UpdateProfileInput struct {
	Username   *string
	Bio        *string
	AvatarPath *string
}

// UpdateProfile は自分のプロフィールを更新し、更新後のプロフィールを返す。
// 自己紹介はサニタイズして保存する。キャッシュは上書きされる。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*model.Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	oldUsername := user.Username

	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.Bio != nil {
		user.Bio = s.sanitizer.Sanitize(*input.Bio)
	}
	if input.AvatarPath != nil {
		user.AvatarPath = *input.AvatarPath
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateUsernameError(user.Username)
		}
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	// ユーザー名が変わった場合は旧キーのエントリを消す
	if s.cache != nil && oldUsername != user.Username {
		if err := s.cache.Delete(ctx, oldUsername); err != nil {
			slog.Warn("profile cache delete failed", slog.String("error", err.Error()))
		}
	}

	profile, err := s.buildProfile(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, profile); err != nil {
			slog.Warn("profile cache write failed", slog.String("error", err.Error()))
		}
	}

	return profile, nil
}

// Follow はユーザーをフォローする。
// 自己フォローと重複フォローはエラー。相手側プロフィールのキャッシュは
// 能動的に無効化せず、TTL満了で追いつく。
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return model.NewSelfFollowError()
	}

	followee, err := s.userRepo.FindByID(ctx, followeeID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if followee == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.followRepo.Add(ctx, followerID, followeeID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewDuplicateFollowError()
		}
		return fmt.Errorf("フォローの登録に失敗しました: %w", err)
	}

	return nil
}

// Unfollow はフォローを解除する。フォローしていない場合はエラー。
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	existed, err := s.followRepo.Remove(ctx, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("フォローの解除に失敗しました: %w", err)
	}
	if !existed {
		return model.NewFollowNotFoundError(followeeID)
	}
	return nil
}

// IdentityEvent はIdP Webhookから受け取ったユーザー情報。
type IdentityEvent struct {
	ExternalID string
	Email      string
	Username   string
	AvatarPath string
}

// ApplyIdentityCreated はIdPのuser.createdイベントを適用する。
// 同一外部IDのユーザーが既に存在する場合は更新として扱う（Webhookの再配信対策）。
func (s *Service) ApplyIdentityCreated(ctx context.Context, evt IdentityEvent) error {
	existing, err := s.userRepo.FindByExternalID(ctx, evt.ExternalID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return s.ApplyIdentityUpdated(ctx, evt)
	}

	now := time.Now()
	user := &model.User{
		ID:         uuid.NewString(),
		ExternalID: evt.ExternalID,
		Email:      evt.Email,
		Username:   evt.Username,
		AvatarPath: evt.AvatarPath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewDuplicateEmailError()
		}
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, user.Email, user.Username); err != nil {
			// メール失敗でユーザー作成は巻き戻さない
			slog.Warn("failed to send welcome email",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// ApplyIdentityUpdated はIdPのuser.updatedイベントを適用する。
// プロフィールキャッシュは上書きのため一度削除する。
func (s *Service) ApplyIdentityUpdated(ctx context.Context, evt IdentityEvent) error {
	user, err := s.userRepo.FindByExternalID(ctx, evt.ExternalID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	oldUsername := user.Username

	if evt.Email != "" {
		user.Email = evt.Email
	}
	if evt.Username != "" {
		user.Username = evt.Username
	}
	if evt.AvatarPath != "" {
		user.AvatarPath = evt.AvatarPath
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewDuplicateUsernameError(user.Username)
		}
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, oldUsername); err != nil {
			slog.Warn("profile cache delete failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

// ApplyIdentityDeleted はIdPのuser.deletedイベントを適用する。
// 関連行はDBのCASCADEで削除される。存在しない外部IDは冪等に成功扱い。
func (s *Service) ApplyIdentityDeleted(ctx context.Context, externalID string) error {
	user, err := s.userRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil
	}

	if err := s.userRepo.DeleteByExternalID(ctx, externalID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, user.Username); err != nil {
			slog.Warn("profile cache delete failed", slog.String("error", err.Error()))
		}
	}

	return nil
}
