package mirror

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"hoppscotch-backup/internal/config"
	"hoppscotch-backup/internal/logger"
	"hoppscotch-backup/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectMeta describes one mirrored object.
type ObjectMeta struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// Mirror uploads the aggregate export file of each run to an S3
// bucket as an off-repository copy. It also lists and deletes
// mirrored objects on behalf of retention pruning.
type Mirror struct {
	uploader *manager.Uploader
	client   *s3.Client
	bucket   string
	prefix   string
}

// New creates a Mirror, or nil when no bucket is configured.
// Credentials fall back to the default AWS chain when the static pair
// is not set; a custom endpoint switches the client to path-style
// addressing for S3-compatible services.
func New(ctx context.Context, cfg config.MirrorSettings) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Log.Info("S3 mirror initialized",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", awsCfg.Region),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("prefix", cfg.Prefix),
	)
	return &Mirror{
		uploader: manager.NewUploader(client),
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// UploadRun mirrors the run's aggregate export file (the first entry
// of ExportedFiles) under {prefix}/{timestamp}/{filename}.
func (m *Mirror) UploadRun(ctx context.Context, run *model.ExportRun) error {
	if len(run.ExportedFiles) == 0 {
		return fmt.Errorf("run has no exported files to mirror")
	}
	aggregate := run.ExportedFiles[0]

	file, err := os.Open(aggregate)
	if err != nil {
		return fmt.Errorf("failed to open %s for mirroring: %w", aggregate, err)
	}
	defer file.Close()

	key := m.objectKey(run.Timestamp, filepath.Base(aggregate))
	result, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to mirror %s to s3://%s/%s: %w", aggregate, m.bucket, key, err)
	}

	logger.Log.Info("Mirrored aggregate export to S3",
		zap.String("location", result.Location),
		zap.String("key", key),
	)
	return nil
}

func (m *Mirror) objectKey(timestamp, fileName string) string {
	if m.prefix != "" {
		return path.Join(m.prefix, timestamp, fileName)
	}
	return path.Join(timestamp, fileName)
}

// ListObjects lists mirrored objects under the configured prefix.
func (m *Mirror) ListObjects(ctx context.Context) ([]ObjectMeta, error) {
	var objects []ObjectMeta

	paginator := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list mirrored objects (bucket %s, prefix %s): %w", m.bucket, m.prefix, err)
		}
		for _, obj := range page.Contents {
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			objects = append(objects, ObjectMeta{
				Key:          aws.ToString(obj.Key),
				LastModified: aws.ToTime(obj.LastModified),
				Size:         size,
			})
		}
	}
	return objects, nil
}

// DeleteObject removes one mirrored object.
func (m *Mirror) DeleteObject(ctx context.Context, key string) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete mirrored object %s: %w", key, err)
	}
	logger.Log.Info("Deleted mirrored object", zap.String("key", key))
	return nil
}
