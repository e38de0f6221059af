package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"analytics-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
)

// dynamodbAPI is the subset of the DynamoDB client used by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps one item per message plus a META item tracking the last
// activity. Items carry a ttl attribute so the table's TTL sweeper removes
// idle conversations; reads also ignore conversations past their TTL since
// the sweeper runs lazily.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// msgSK orders messages by timestamp; seq breaks ties between messages of
// the same batch.
func msgSK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%03d", skPrefixMsg, ts.UTC().Format(time.RFC3339Nano), seq)
}

// AddMessages writes the messages and the refreshed META item in one
// transaction.
func (s *DynamoStore) AddMessages(ctx context.Context, conversationID string, msgs []domain.Message) error {
	if err := checkID("AddMessages", conversationID); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > MaxMessages {
		msgs = msgs[len(msgs)-MaxMessages:]
	}

	now := s.now().UTC()
	expires := now.Add(s.ttl).Unix()
	items := make([]types.TransactWriteItem, 0, len(msgs)+1)
	for i, m := range msgs {
		item, err := messageItem(conversationID, m, i, expires)
		if err != nil {
			return fmt.Errorf("repository: AddMessages: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		}})
	}
	items = append(items, types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(s.tableName),
		Item:      metaItem(conversationID, now, expires),
	}})

	if _, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: AddMessages: %w", err)
	}
	return nil
}

// GetHistory queries MSG# items newest first and returns them in
// chronological order.
func (s *DynamoStore) GetHistory(ctx context.Context, conversationID string, lastN int) ([]domain.Message, error) {
	if err := checkID("GetHistory", conversationID); err != nil {
		return nil, err
	}

	live, err := s.live(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, nil
	}

	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(window(lastN))),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// live reports whether the conversation exists and has not expired.
func (s *DynamoStore) live(ctx context.Context, conversationID string) (bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("repository: GetHistory get meta: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return false, nil
	}
	last, err := strAttr(out.Item, "lastActivity")
	if err != nil {
		return false, fmt.Errorf("repository: GetHistory decode meta: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, last)
	if err != nil {
		return false, fmt.Errorf("repository: GetHistory parse lastActivity: %w", err)
	}
	return s.now().Sub(ts) <= s.ttl, nil
}

func (s *DynamoStore) Close() error { return nil }

func messageItem(conversationID string, m domain.Message, seq int, expires int64) (map[string]types.AttributeValue, error) {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: msgSK(ts, seq)},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"role":           &types.AttributeValueMemberS{Value: string(m.Role)},
		"content":        &types.AttributeValueMemberS{Value: m.Content},
		"timestamp":      &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339Nano)},
		"metadata":       &types.AttributeValueMemberS{Value: string(meta)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
	}, nil
}

func metaItem(conversationID string, now time.Time, expires int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"lastActivity":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
	}
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{Role: domain.Role(role), Content: content}

	if ts, err := strAttr(item, "timestamp"); err == nil {
		if msg.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return domain.Message{}, fmt.Errorf("repository: parse timestamp: %w", err)
		}
	}
	if raw, err := strAttr(item, "metadata"); err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Metadata); err != nil {
			return domain.Message{}, fmt.Errorf("repository: decode metadata: %w", err)
		}
	}
	return msg, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
