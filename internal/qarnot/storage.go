package qarnot

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// The storage endpoint does not use regions, but the AWS SDK requires one.
const storageRegion = "us-east-1"

// s3API is the subset of the S3 client used by the storage operations.
type s3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// storage returns the S3 client, building it on first use. The storage
// credentials are the account email (fetched from the cluster API) and
// the API token.
func (c *Client) storage(ctx context.Context) (s3API, error) {
	c.s3once.Do(func() {
		var info struct {
			Email string `json:"email"`
		}
		if err := c.getJSON(ctx, "/info", &info); err != nil {
			c.s3err = errors.Wrap(err, "failed to fetch account info")
			return
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(storageRegion),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(info.Email, c.token, ""),
			),
		)
		if err != nil {
			c.s3err = errors.Wrap(err, "failed to load storage config")
			return
		}
		c.s3cli = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(c.storageURL)
			o.UsePathStyle = true
		})
		logger.ContextKV(ctx, xlog.DEBUG, "event", "storage_client_created", "endpoint", c.storageURL)
	})
	return c.s3cli, c.s3err
}

// Buckets implements the Connection interface.
func (c *Client) Buckets(ctx context.Context) ([]Bucket, error) {
	cli, err := c.storage(ctx)
	if err != nil {
		return nil, err
	}
	out, err := cli.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list buckets")
	}
	res := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		res = append(res, Bucket{Name: aws.ToString(b.Name)})
	}
	return res, nil
}

// BucketFiles implements the Connection interface.
func (c *Client) BucketFiles(ctx context.Context, bucket string) ([]BucketFile, error) {
	cli, err := c.storage(ctx)
	if err != nil {
		return nil, err
	}
	var res []BucketFile
	var token *string
	for {
		out, err := cli.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrapf(mapStorageErr(err), "failed to list files in bucket %s", bucket)
		}
		for _, obj := range out.Contents {
			f := BucketFile{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				f.LastModified = obj.LastModified.UTC().Format("2006-01-02 15:04:05")
			}
			res = append(res, f)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return res, nil
}

// DownloadFile implements the Connection interface.
func (c *Client) DownloadFile(ctx context.Context, bucket, remotePath, localPath string) error {
	cli, err := c.storage(ctx)
	if err != nil {
		return err
	}
	obj, err := cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		return errors.Wrapf(mapStorageErr(err), "failed to get %s from bucket %s", remotePath, bucket)
	}
	defer obj.Body.Close()

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create local directory")
		}
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(err, "failed to create local file")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, obj.Body); err != nil {
		return errors.Wrap(err, "failed to write local file")
	}
	return nil
}

// mapStorageErr converts S3 missing-bucket and missing-key errors into
// ErrNotFound, leaving everything else as is.
func mapStorageErr(err error) error {
	var noBucket *s3types.NoSuchBucket
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noBucket) || errors.As(err, &noKey) {
		return ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return ErrNotFound
		}
	}
	return err
}
