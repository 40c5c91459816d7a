package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/GTDGit/menu_api/internal/config"
)

// S3ImageSource lists product images stored under a bucket prefix.
type S3ImageSource struct {
	client   *s3.Client
	bucket   string
	prefix   string
	region   string
	endpoint string
}

// NewS3ImageSource creates an S3 image source using the default AWS
// credential chain.
func NewS3ImageSource(ctx context.Context, cfg config.ImageConfig) (*S3ImageSource, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3ImageSource{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}, nil
}

// List returns the object names under the prefix, with the prefix removed.
func (s *S3ImageSource) List(ctx context.Context) ([]string, error) {
	var files []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			files = append(files, name)
		}
	}
	return files, nil
}

// URL returns the public object URL of a file.
func (s *S3ImageSource) URL(file string) string {
	key := s.prefix + url.PathEscape(file)
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
