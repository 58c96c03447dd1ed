// Package s3src opens import inputs from S3 (s3://bucket/key) or the local
// filesystem.
package s3src

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"realty_catalog/internal/adapters/observability"
	"realty_catalog/internal/domain"
)

// GetObjectAPI is the slice of the S3 client the opener needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Opener struct {
	client GetObjectAPI
}

// New builds an opener backed by the default AWS credential chain.
func New(ctx context.Context, region string) (*Opener, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg)), nil
}

func NewWithClient(c GetObjectAPI) *Opener { return &Opener{client: c} }

// IsS3 reports whether uri names an S3 object.
func IsS3(uri string) bool { return strings.HasPrefix(uri, "s3://") }

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 uri %q: %w", uri, domain.ErrInvalid)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q needs bucket and key: %w", uri, domain.ErrInvalid)
	}
	return u.Host, key, nil
}

// Open returns a reader and a name whose extension tells the record format.
// Plain paths are opened from disk; the opener may be nil for those.
func (o *Opener) Open(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	if !IsS3(uri) {
		f, err := os.Open(uri)
		if err != nil {
			return nil, "", err
		}
		return f, uri, nil
	}
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, "", err
	}
	if o == nil || o.client == nil {
		return nil, "", fmt.Errorf("s3 input %s: no S3 client configured", uri)
	}

	start := time.Now()
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("s3", "get_object", status, time.Since(start))
	if err != nil {
		return nil, "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, path.Base(key), nil
}
