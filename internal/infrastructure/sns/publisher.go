package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/restockwatch/worker/internal/domain"
)

// Publisher emits change events to an SNS topic. Delivery is at-least-once;
// subscribers deduplicate by eventId.
type Publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(client *sns.Client, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

// Publish sends one change event to the topic. The eventType and
// correlationId message attributes let subscribers filter without parsing
// the body.
func (p *Publisher) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: marshal event %s: %v", domain.ErrPublish, ev.EventID, err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.EventType),
			},
			"correlationId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.Metadata.CorrelationID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: event %s: %v", domain.ErrPublish, ev.EventID, err)
	}
	return nil
}
