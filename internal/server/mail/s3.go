package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	From         string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3OutboxDispatcher drops each message as an .eml object into an outbox
// bucket. A relay outside this process drains the bucket.
type S3OutboxDispatcher struct {
	client objectPutter
	bucket string
	from   string
	now    func() time.Time
}

// NewS3OutboxDispatcher builds the S3 client. Static credentials and a base
// endpoint are used when configured, which is how MinIO is addressed.
func NewS3OutboxDispatcher(ctx context.Context, cfg S3Config) (*S3OutboxDispatcher, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3OutboxDispatcher(client, cfg.Bucket, cfg.From), nil
}

func newS3OutboxDispatcher(client objectPutter, bucket, from string) *S3OutboxDispatcher {
	return &S3OutboxDispatcher{client: client, bucket: bucket, from: from, now: time.Now}
}

// outboxKey groups messages by day so the relay can list them in order.
func outboxKey(t time.Time, id string) string {
	return fmt.Sprintf("outbox/%d/%02d/%02d/%s.eml", t.Year(), t.Month(), t.Day(), id)
}

func (d *S3OutboxDispatcher) Send(ctx context.Context, msg Message) error {
	now := d.now().UTC()
	id := uuid.NewString()
	raw := msg.Bytes(d.from, now, id+"@taskmanager")

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(outboxKey(now, id)),
		Body:          bytes.NewReader(raw),
		ContentLength: aws.Int64(int64(len(raw))),
		ContentType:   aws.String("message/rfc822"),
	})
	if err != nil {
		return fmt.Errorf("s3 outbox put: %w", err)
	}
	return nil
}
