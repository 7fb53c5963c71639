package files

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
)

// S3 stores files in an S3 (or S3 compatible) bucket.
type S3 struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
}

var _ core.FileStorage = (*S3)(nil) // interface compliance check

func NewS3(conf core.StorageConfig) (*S3, error) {
	awsConf := &aws.Config{Region: aws.String(conf.S3Region)}
	if conf.S3AccessKey != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(conf.S3AccessKey, conf.S3SecretKey, "")
	}
	if conf.S3Endpoint != "" {
		awsConf.Endpoint = aws.String(conf.S3Endpoint)
		awsConf.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}

	baseURL := conf.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", conf.S3Bucket, conf.S3Region)
	}
	return &S3{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   conf.S3Bucket,
		baseURL:  baseURL,
	}, nil
}

func (s *S3) Save(ctx context.Context, key string, r io.Reader, contentType string) (core.StoredFile, error) {
	key, err := cleanKey(key)
	if err != nil {
		return core.StoredFile{}, err
	}

	cr := &countingReader{r: r}
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        cr,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "uploading to S3")
	}

	return core.StoredFile{
		Key:         key,
		URL:         joinURL(s.baseURL, key),
		ContentType: contentType,
		Size:        cr.n,
	}, nil
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "downloading from S3")
	}
	return out.Body, nil
}

// Delete succeeds when the object does not exist, as S3 does.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrap(err, "deleting from S3")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
