package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/restockwatch/worker/internal/domain"
)

// defaultPreferencesID keys the single preferences item. The preference API
// owns writes; this worker only reads.
const defaultPreferencesID = "default"

// PreferencesRepo reads the notification-preferences table.
type PreferencesRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPreferencesRepo(client *dynamodb.Client, tableName string) *PreferencesRepo {
	return &PreferencesRepo{client: client, tableName: tableName}
}

// Get returns the current preferences, or (nil, nil) when none are stored —
// an absent record means there is nothing to notify, not an error.
func (r *PreferencesRepo) Get(ctx context.Context) (*domain.Preferences, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("preferences_id", defaultPreferencesID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var p domain.Preferences
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
