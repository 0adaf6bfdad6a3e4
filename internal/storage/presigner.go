// Package storage はオブジェクトストレージへの画像アップロードURL発行を提供する。
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// 許可する画像拡張子とContent-Typeの対応。
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ErrUnsupportedExtension は許可されていない拡張子を表す。
var ErrUnsupportedExtension = fmt.Errorf("サポートされていない画像形式です（jpg/jpeg/png/webpのみ）")

// PresignedUpload は発行済みアップロードURLとオブジェクトキー。
// クライアントはURLへ直接PUTし、キーを出品・プロフィールに保存する。
type PresignedUpload struct {
	URL         string
	Key         string
	ContentType string
	ExpiresAt   time.Time
}

// Presigner は署名付きアップロードURLの発行インターフェース。
type Presigner interface {
	PresignListingImage(ctx context.Context, userID, ext string) (*PresignedUpload, error)
	PresignAvatar(ctx context.Context, userID, ext string) (*PresignedUpload, error)
}

// S3Presigner はS3署名付きURLによるPresigner実装。
type S3Presigner struct {
	presignClient *s3.PresignClient
	bucket        string
	expiry        time.Duration
}

var _ Presigner = (*S3Presigner)(nil)

// NewS3Presigner はS3Presignerの新しいインスタンスを生成する。
func NewS3Presigner(client *s3.Client, bucket string, expiry time.Duration) *S3Presigner {
	return &S3Presigner{
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
		expiry:        expiry,
	}
}

// PresignListingImage は出品画像用のアップロードURLを発行する。
// キーは listings/{userID}/{ランダムUUID}{拡張子}。
func (p *S3Presigner) PresignListingImage(ctx context.Context, userID, ext string) (*PresignedUpload, error) {
	return p.presign(ctx, "listings", userID, ext)
}

// PresignAvatar はプロフィール画像用のアップロードURLを発行する。
// キーは avatars/{userID}/{ランダムUUID}{拡張子}。
func (p *S3Presigner) PresignAvatar(ctx context.Context, userID, ext string) (*PresignedUpload, error) {
	return p.presign(ctx, "avatars", userID, ext)
}

func (p *S3Presigner) presign(ctx context.Context, prefix, userID, ext string) (*PresignedUpload, error) {
	ext = strings.ToLower(ext)
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return nil, ErrUnsupportedExtension
	}

	key := fmt.Sprintf("%s/%s/%s%s", prefix, userID, uuid.NewString(), ext)

	req, err := p.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return nil, fmt.Errorf("アップロードURLの発行に失敗しました: %w", err)
	}

	return &PresignedUpload{
		URL:         req.URL,
		Key:         key,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(p.expiry),
	}, nil
}
