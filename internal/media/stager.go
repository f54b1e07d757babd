// Package media stages local files in object storage so the backend can
// fetch them by URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/logger"
	"go.uber.org/zap"
)

// ErrDisabled is returned when no bucket is configured
var ErrDisabled = errors.New("media staging is disabled: set media.bucket")

// Stager uploads a file and returns a URL the backend can fetch it from
type Stager interface {
	Stage(ctx context.Context, name string, r io.Reader) (string, error)
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Stager stores files in an S3-compatible bucket under
// <prefix>/<uuid><ext>.
type S3Stager struct {
	uploader  uploader
	presigner presigner
	bucket    string
	prefix    string
	baseURL   string
	ttl       time.Duration
	newID     func() string
	log       *zap.Logger
}

// NewS3Stager configures an uploader for the bucket in cfg
func NewS3Stager(ctx context.Context, cfg config.MediaConfig) (*S3Stager, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return newS3Stager(cfg, up, s3.NewPresignClient(client)), nil
}

func newS3Stager(cfg config.MediaConfig, up uploader, ps presigner) *S3Stager {
	return &S3Stager{
		uploader:  up,
		presigner: ps,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		baseURL:   strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		ttl:       cfg.PresignTTL,
		newID:     uuid.NewString,
		log:       logger.Named("media"),
	}
}

// Stage uploads r under a fresh key that keeps name's extension
func (s *S3Stager) Stage(ctx context.Context, name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	key := path.Join(s.prefix, s.newID()+ext)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   manager.ReadSeekCloser(r),
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	s.log.Debug("staged media", zap.String("name", name), zap.String("key", key))

	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// disabled is the Stager used when no bucket is configured
type disabled struct{}

func (disabled) Stage(context.Context, string, io.Reader) (string, error) {
	return "", ErrDisabled
}

// IsRemote reports whether ref is already an http(s) URL
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// StageRefs returns refs with every local path replaced by its staged URL.
// Remote URLs pass through untouched.
func StageRefs(ctx context.Context, stager Stager, refs []string) ([]string, error) {
	out := make([]string, len(refs))
	for i, ref := range refs {
		if IsRemote(ref) {
			out[i] = ref
			continue
		}
		url, err := stageFile(ctx, stager, ref)
		if err != nil {
			return nil, err
		}
		out[i] = url
	}
	return out, nil
}

func stageFile(ctx context.Context, stager Stager, name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	return stager.Stage(ctx, name, f)
}
