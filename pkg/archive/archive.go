// Package archive uploads reports to an S3 compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
)

const defaultPrefix = "reports"

type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
	Prefix    string `mapstructure:"prefix"`
}

func (c Config) Validate() error {
	if c.Endpoint == "" || c.Bucket == "" {
		return errors.New("archive endpoint and bucket are required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("archive access and secret key are required")
	}
	return nil
}

// objectPutter is the subset of *minio.Client used here.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, name string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

func New(c Config) (*Archiver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.Secure,
		Region: c.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't create S3 client")
	}

	return newArchiver(client, c), nil
}

func newArchiver(client objectPutter, c Config) *Archiver {
	prefix := c.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Archiver{client: client, bucket: c.Bucket, prefix: prefix}
}

// ObjectName is <prefix>/<clusterId>/<timestamp>.json.
func (a *Archiver) ObjectName(report *models.Report) string {
	ts := report.Timestamp.UTC().Format("20060102T150405Z")
	return path.Join(a.prefix, report.ClusterID, ts+".json")
}

// Put uploads report and returns the object name.
func (a *Archiver) Put(ctx context.Context, report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "can't encode report")
	}

	name := a.ObjectName(report)
	_, err = a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("can't upload %s to bucket %s", name, a.bucket))
	}

	return name, nil
}
