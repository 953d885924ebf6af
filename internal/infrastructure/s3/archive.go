package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/restockwatch/worker/internal/domain"
)

// Archive writes every published change event to S3 as a reconciliation
// trail. When a topic publish fails, the persisted state change plus this
// archive let an out-of-band job replay missed events; archive writes are
// best-effort and never fail a poll.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive creates an Archive over the given bucket.
func NewArchive(client *s3.Client, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

// Store writes one change event under events/YYYY/MM/DD/<eventId>.json.
// The key is derived from the event timestamp and id, so re-archiving a
// redelivered event overwrites the identical object (idempotent).
func (a *Archive) Store(ctx context.Context, ev domain.ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.EventID, err)
	}
	key := fmt.Sprintf("events/%s/%s.json", ev.Timestamp.UTC().Format("2006/01/02"), ev.EventID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive event %s: %w", ev.EventID, err)
	}
	return nil
}
