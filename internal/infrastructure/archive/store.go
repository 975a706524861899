// Package archive 将保存后的生成结果以 JSON 归档到 S3 兼容对象存储
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
)

// objectPutter *s3.Client 的最小子集
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store 归档投递，对象键为 <prefix>/<user>/<id>.json
type Store struct {
	client objectPutter
	bucket string
	prefix string
}

// NewStore 使用默认 AWS 凭证链创建归档存储
func NewStore(ctx context.Context, cfg *config.ArchiveConfig) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newStore(client, cfg.Bucket, cfg.Prefix), nil
}

func newStore(client objectPutter, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *Store) Name() string { return "archive" }

// Key 生成结果的对象键
func (s *Store) Key(gen *entity.Generation) string {
	return path.Join(s.prefix, gen.UserID, gen.ID+".json")
}

// Store 写入完整生成结果，含译文
func (s *Store) Store(ctx context.Context, gen *entity.Generation) error {
	body, err := json.Marshal(gen)
	if err != nil {
		return fmt.Errorf("marshal generation %s: %w", gen.ID, err)
	}

	key := s.Key(gen)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		metrics.ArchiveWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}

	metrics.ArchiveWrites.WithLabelValues("success").Inc()
	logger.Debug(ctx, "generation archived", "generation_id", gen.ID, "key", key, "bytes", len(body))
	return nil
}
