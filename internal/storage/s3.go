// Package storage keeps user avatars in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iliyamo/user-management/internal/config"
	"github.com/iliyamo/user-management/internal/model"
)

// MaxAvatarBytes is the exclusive upper bound of an avatar's size.
const MaxAvatarBytes = 1 << 20

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AvatarStore uploads and deletes avatar objects and builds their public URL
// as <public url>/<bucket>/<object>.
type AvatarStore struct {
	api       objectAPI
	bucket    string
	publicURL string
}

// NewAvatarStore builds an S3 client with static credentials against
// cfg.BaseEndpoint using path-style addressing, which localstack and MinIO
// require.
func NewAvatarStore(ctx context.Context, cfg config.S3Config) (*AvatarStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		o.UsePathStyle = true
	})
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = cfg.BaseEndpoint
	}
	return newAvatarStore(client, cfg.Bucket, publicURL), nil
}

func newAvatarStore(api objectAPI, bucket, publicURL string) *AvatarStore {
	return &AvatarStore{api: api, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// ValidateImage accepts non-empty PNG or JPEG payloads under 1 MiB.
func ValidateImage(data []byte, contentType string) error {
	if len(data) == 0 || len(data) >= MaxAvatarBytes {
		return fmt.Errorf("%w: supported file size is 0 - 1 MB", model.ErrInvalidInput)
	}
	if !allowedTypes[strings.ToLower(strings.TrimSpace(contentType))] {
		return fmt.Errorf("%w: supported file types are png and jpeg", model.ErrInvalidInput)
	}
	return nil
}

// ObjectName derives a stable object name from the image bytes and its owner,
// so re-uploading the same image overwrites the same object.
func ObjectName(data []byte, userID string) string {
	h := md5.New()
	h.Write(data)
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil)) + ".png"
}

// URL returns the public URL of object name.
func (s *AvatarStore) URL(name string) string {
	return s.publicURL + "/" + s.bucket + "/" + name
}

// Upload validates and stores data for userID and returns its URL.
func (s *AvatarStore) Upload(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	if err := ValidateImage(data, contentType); err != nil {
		return "", err
	}
	name := ObjectName(data, userID)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put avatar %s: %w", name, err)
	}
	return s.URL(name), nil
}

// Delete removes the object behind url.  URLs outside this bucket are
// ignored.
func (s *AvatarStore) Delete(ctx context.Context, url string) error {
	prefix := s.publicURL + "/" + s.bucket + "/"
	name, ok := strings.CutPrefix(url, prefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return nil
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}); err != nil {
		return fmt.Errorf("delete avatar %s: %w", name, err)
	}
	return nil
}
