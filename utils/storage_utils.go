package utils

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Storage uploads catalog images to an S3-compatible object store.
type S3Storage struct {
	client   *s3.S3
	bucket   string
	endpoint string
}

func NewS3Storage(accessKey, secretKey, bucket, region, endpoint string) (*S3Storage, error) {
	if accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("s3: access_key/secret_key/bucket are required")
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Endpoint:    aws.String(endpoint),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	})
	if err != nil {
		return nil, err
	}
	return &S3Storage{client: s3.New(sess), bucket: bucket, endpoint: endpoint}, nil
}

// UploadImage stores the file under folder/fileName and returns its public URL.
func (s *S3Storage) UploadImage(file []byte, fileName, folder string) (string, error) {
	filePath := fmt.Sprintf("%s/%s", folder, fileName)

	_, err := s.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(filePath),
		Body:          bytes.NewReader(file),
		ContentLength: aws.Int64(int64(len(file))),
		ContentType:   aws.String("image/jpeg"),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload file to S3: %v", err)
	}

	host := s.endpoint
	if u, err := url.Parse(s.endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, host, filePath), nil
}
