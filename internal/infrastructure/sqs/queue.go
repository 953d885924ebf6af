// Package sqs wraps the notification queue transport. The transport owns all
// retry bookkeeping: a handler failure simply leaves the message to reappear
// after its visibility timeout, and the queue's redrive policy dead-letters
// it once the maximum delivery count is exceeded.
package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/restockwatch/worker/internal/domain"
)

// Message is a delivered notification request plus its transport metadata.
type Message struct {
	Request       domain.NotificationRequest
	DeliveryCount int // ApproximateReceiveCount: 1 on first delivery
}

// Handler processes one delivered message. Return nil to acknowledge
// (delete), non-nil to let the transport redeliver.
type Handler func(ctx context.Context, m Message) error

// Options configures a Queue.
type Options struct {
	QueueURL    string
	Concurrency int // max in-flight handlers; defaults to 1
}

// Queue sends and consumes notification requests.
type Queue struct {
	client      *sqs.Client
	queueURL    string
	concurrency int
}

func NewQueue(client *sqs.Client, opts Options) *Queue {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Queue{client: client, queueURL: opts.QueueURL, concurrency: opts.Concurrency}
}

// EnsureQueues creates the work queue and its dead-letter queue if they don't
// exist and returns the work queue URL. Safe to call on every startup.
func EnsureQueues(ctx context.Context, client *sqs.Client, queueName, dlqName string, maxDeliveries, visibilitySeconds int) (string, error) {
	dlqURL, err := ensureQueue(ctx, client, dlqName, nil)
	if err != nil {
		return "", fmt.Errorf("ensure dead-letter queue: %w", err)
	}

	attrsOut, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(dlqURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", fmt.Errorf("resolve dead-letter queue arn: %w", err)
	}
	dlqARN := attrsOut.Attributes[string(types.QueueAttributeNameQueueArn)]

	redrive, _ := json.Marshal(map[string]string{
		"deadLetterTargetArn": dlqARN,
		"maxReceiveCount":     strconv.Itoa(maxDeliveries),
	})
	queueURL, err := ensureQueue(ctx, client, queueName, map[string]string{
		string(types.QueueAttributeNameRedrivePolicy):     string(redrive),
		string(types.QueueAttributeNameVisibilityTimeout): strconv.Itoa(visibilitySeconds),
	})
	if err != nil {
		return "", fmt.Errorf("ensure work queue: %w", err)
	}
	return queueURL, nil
}

func ensureQueue(ctx context.Context, client *sqs.Client, name string, attrs map[string]string) (string, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err == nil {
		return *out.QueueUrl, nil
	}
	var notFound *types.QueueDoesNotExist
	if !errors.As(err, &notFound) {
		return "", err
	}

	created, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(name),
		Attributes: attrs,
	})
	if err != nil {
		return "", err
	}
	slog.Info("created queue", "queue", name)
	return *created.QueueUrl, nil
}

// Enqueue sends one notification request. The payload is immutable once
// queued; redelivery reuses it as-is.
func (q *Queue) Enqueue(ctx context.Context, req domain.NotificationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification request %s: %w", req.RequestID, err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"correlationId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.CorrelationID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue notification request %s: %w", req.RequestID, err)
	}
	return nil
}

// Consume long-polls the queue and feeds messages to handler with bounded
// concurrency. It blocks until ctx is cancelled, draining in-flight handlers
// before returning.
func (q *Queue) Consume(ctx context.Context, handler Handler) {
	slog.Info("queue consumer started", "queue_url", q.queueURL, "concurrency", q.concurrency)

	sem := make(chan struct{}, q.concurrency)
	var wg sync.WaitGroup

	for {
		if ctx.Err() != nil {
			break
		}

		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(q.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     10,
			MessageSystemAttributeNames: []types.MessageSystemAttributeName{
				types.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("receive failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range out.Messages {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				// Not started: the message reappears after its visibility timeout.
				wg.Wait()
				slog.Info("queue consumer stopped", "queue_url", q.queueURL)
				return
			}
			wg.Add(1)
			go func(m types.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				q.handleOne(ctx, m, handler)
			}(m)
		}
	}

	wg.Wait()
	slog.Info("queue consumer stopped", "queue_url", q.queueURL)
}

func (q *Queue) handleOne(ctx context.Context, m types.Message, handler Handler) {
	var req domain.NotificationRequest
	if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &req); err != nil {
		// Malformed payloads can never succeed; delete instead of cycling
		// them through redelivery into the DLQ.
		slog.Warn("discarding malformed message", "err", err)
		q.delete(m)
		return
	}

	deliveries := 1
	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			deliveries = n
		}
	}

	if err := handler(ctx, Message{Request: req, DeliveryCount: deliveries}); err != nil {
		// Leave the message: it reappears after the visibility timeout and
		// dead-letters once maxReceiveCount is exceeded.
		slog.Warn("handler failed, message will redeliver",
			"request_id", req.RequestID, "delivery", deliveries, "err", err)
		return
	}
	q.delete(m)
}

func (q *Queue) delete(m types.Message) {
	// Background context so an in-flight ack survives shutdown.
	_, err := q.client.DeleteMessage(context.Background(), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		slog.Warn("delete message failed", "err", err)
	}
}
