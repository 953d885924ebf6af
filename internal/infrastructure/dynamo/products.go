package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/restockwatch/worker/internal/domain"
)

// ProductRepo provides typed DynamoDB operations for the monitored-products table.
type ProductRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewProductRepo(client *dynamodb.Client, tableName string) *ProductRepo {
	return &ProductRepo{client: client, tableName: tableName}
}

func (r *ProductRepo) Put(ctx context.Context, p *domain.MonitoredProduct) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ProductRepo) Get(ctx context.Context, productID string) (*domain.MonitoredProduct, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("product_id", productID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	var p domain.MonitoredProduct
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActive queries the active-index GSI for monitored products with the
// given priority.
func (r *ProductRepo) ListActive(ctx context.Context, priority string) ([]domain.MonitoredProduct, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("active-index"),
		KeyConditionExpression: aws.String("active = :one"),
		FilterExpression:       aws.String("priority = :prio"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  &types.AttributeValueMemberN{Value: "1"},
			":prio": &types.AttributeValueMemberS{Value: priority},
		},
	})
	if err != nil {
		return nil, err
	}
	var products []domain.MonitoredProduct
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ObservedUpdate is the field set persisted after every poll.
type ObservedUpdate struct {
	Status       domain.AvailabilityState
	ProductURL   string
	AddToCartURL string
	ImageURL     string
	Name         string
	Changed      bool
	CheckedAt    time.Time
}

// UpdateObserved persists the outcome of a single poll in one atomic
// UpdateItem. last_status_change_at is written if and only if the
// availability verdict changed.
func (r *ProductRepo) UpdateObserved(ctx context.Context, productID string, u ObservedUpdate) error {
	updates := map[string]interface{}{
		"current_status":  u.Status,
		"last_checked_at": u.CheckedAt,
		"updated_at":      u.CheckedAt,
	}
	if u.ProductURL != "" {
		updates["product_url"] = u.ProductURL
	}
	if u.AddToCartURL != "" {
		updates["add_to_cart_url"] = u.AddToCartURL
	}
	if u.ImageURL != "" {
		updates["image_url"] = u.ImageURL
	}
	if u.Name != "" {
		updates["name"] = u.Name
	}
	if u.Changed {
		updates["last_status_change_at"] = u.CheckedAt
	}

	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("product_id", productID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
