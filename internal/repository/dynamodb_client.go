package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"standup-bot/internal/domain"
)

const (
	skPrefixReport    = "REPORT#"
	defaultArchiveTTL = 90 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client archives finished standup reports in a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// New creates a new repository Client. A non-positive ttl selects the default.
func New(api dynamodbAPI, tableName string, ttl time.Duration) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultArchiveTTL
	}
	return &Client{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

func userPK(userID string) string {
	return "USER#" + userID
}

func reportSK(ts time.Time) string {
	return skPrefixReport + ts.UTC().Format(time.RFC3339Nano)
}

// SaveReport writes one report together with the outcome of its channel post.
func (c *Client) SaveReport(ctx context.Context, r domain.Report, status string) error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("repository: SaveReport: user id is required")
	}
	completed := r.CompletedAt
	if completed.IsZero() {
		completed = c.now()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                reportItem(r, status, completed, completed.Add(c.ttl).Unix()),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveReport: %w", err)
	}
	return nil
}

func reportItem(r domain.Report, status string, completed time.Time, ttl int64) map[string]types.AttributeValue {
	entries := make([]types.AttributeValue, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"question": &types.AttributeValueMemberS{Value: e.Question},
			"answer":   &types.AttributeValueMemberS{Value: e.Answer},
		}})
	}
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: userPK(r.UserID)},
		"SK":          &types.AttributeValueMemberS{Value: reportSK(completed)},
		"userId":      &types.AttributeValueMemberS{Value: r.UserID},
		"roundId":     &types.AttributeValueMemberS{Value: r.RoundID},
		"channelId":   &types.AttributeValueMemberS{Value: r.ChannelID},
		"text":        &types.AttributeValueMemberS{Value: r.Text},
		"status":      &types.AttributeValueMemberS{Value: status},
		"completedAt": &types.AttributeValueMemberS{Value: completed.UTC().Format(time.RFC3339Nano)},
		"entries":     &types.AttributeValueMemberL{Value: entries},
		"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}
