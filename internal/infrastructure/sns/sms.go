package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/restockwatch/worker/internal/domain"
)

// smsBanner prefixes every alert.
const smsBanner = "Back in stock: "

// smsMaxLen keeps the message inside a single GSM segment.
const smsMaxLen = 160

// SMSSender delivers restock alerts by SMS via SNS direct publish.
type SMSSender struct {
	client   *sns.Client
	senderID string
}

// NewSMSSender creates an SMS sender. client may be nil and senderID empty;
// Send then fails fast with a configuration error instead of calling out.
func NewSMSSender(client *sns.Client, senderID string) *SMSSender {
	return &SMSSender{client: client, senderID: senderID}
}

// Configured reports whether both the SNS endpoint and the outbound sender
// identity are present.
func (s *SMSSender) Configured() bool {
	return s.client != nil && s.senderID != ""
}

// Send formats and transmits one alert to the given E.164 number.
// Returns the provider message id on success.
func (s *SMSSender) Send(ctx context.Context, to string, ev domain.ChangeEvent) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("%w: sms sender needs an endpoint and a sender id", domain.ErrNotConfigured)
	}

	actionURL := ev.Product.AddToCartURL
	if actionURL == "" {
		actionURL = ev.Product.ProductURL
	}
	msg := FormatSMS(ev.Product.Name, actionURL)

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(msg),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: sms to %s: %v", domain.ErrChannelDelivery, to, err)
	}
	if out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}

// FormatSMS builds the alert text: banner + product name + action URL,
// bounded to a single SMS segment. The product name is truncated with an
// ellipsis when needed; the trailing URL is always preserved intact.
func FormatSMS(name, url string) string {
	budget := smsMaxLen - len(smsBanner) - 1 - len(url) // 1 for the space before the URL
	runes := []rune(name)
	if len(runes) > budget {
		if budget > 1 {
			runes = append(runes[:budget-1], '…')
		} else {
			runes = runes[:0]
		}
	}
	return smsBanner + string(runes) + " " + url
}
