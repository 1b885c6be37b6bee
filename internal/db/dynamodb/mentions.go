package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

// FetchMentions queries one ticker's created-index range when q.Ticker is set
// and scans the table otherwise.
func (s *Store) FetchMentions(ctx context.Context, q db.MentionQuery) ([]models.Mention, error) {
	var (
		items []mentionItem
		err   error
	)
	if q.Ticker != "" {
		items, err = s.queryTickerMentions(ctx, q)
	} else {
		items, err = s.scanMentions(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedKey > items[j].CreatedKey })
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	mentions := make([]models.Mention, 0, len(items))
	for _, it := range items {
		mentions = append(mentions, it.model())
	}
	return mentions, nil
}

func (s *Store) queryTickerMentions(ctx context.Context, q db.MentionQuery) ([]mentionItem, error) {
	lo := fmt.Sprintf("%020d", int64(0))
	if !q.Start.IsZero() {
		lo = fmt.Sprintf("%020d", q.Start.UnixMilli())
	}
	hi := "~"
	if !q.End.IsZero() {
		hi = fmt.Sprintf("%020d~", q.End.UnixMilli()-1)
	}

	input := &dynamodb.QueryInput{
		TableName:              s.table(MentionsTable),
		IndexName:              aws.String(mentionCreatedIndex),
		KeyConditionExpression: aws.String("ticker = :t AND created_sk BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberS{Value: q.Ticker},
			":lo": &types.AttributeValueMemberS{Value: lo},
			":hi": &types.AttributeValueMemberS{Value: hi},
		},
		ScanIndexForward: aws.Bool(false),
	}

	var items []mentionItem
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] query mentions for %s: %w", q.Ticker, err)
		}
		var page []mentionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("[DynamoDB] unmarshal mentions: %w", err)
		}
		items = append(items, page...)
		if q.Limit > 0 && len(items) >= q.Limit {
			break
		}
	}
	return items, nil
}

func (s *Store) scanMentions(ctx context.Context, q db.MentionQuery) ([]mentionItem, error) {
	input := &dynamodb.ScanInput{TableName: s.table(MentionsTable)}

	var filters []string
	values := map[string]types.AttributeValue{}
	if !q.Start.IsZero() {
		filters = append(filters, "created_at >= :start")
		values[":start"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(q.Start.UnixMilli(), 10)}
	}
	if !q.End.IsZero() {
		filters = append(filters, "created_at < :end")
		values[":end"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(q.End.UnixMilli(), 10)}
	}
	switch len(filters) {
	case 1:
		input.FilterExpression = aws.String(filters[0])
	case 2:
		input.FilterExpression = aws.String(filters[0] + " AND " + filters[1])
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	var items []mentionItem
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] scan mentions: %w", err)
		}
		var page []mentionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("[DynamoDB] unmarshal mentions: %w", err)
		}
		items = append(items, page...)
	}
	return items, nil
}

// InsertMention puts m on the condition that (ticker, id) is new. An ID that
// is already stored, or already queued on the same transaction view, comes
// back as the existing row with created false.
func (s *Store) InsertMention(ctx context.Context, m models.Mention) (models.Mention, bool, error) {
	now := s.now()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ProcessedAt.IsZero() {
		m.ProcessedAt = now
	}

	key := m.Ticker + "#" + m.ID
	if s.pending != nil {
		if queued, ok := s.pending.mentions[key]; ok {
			return queued, false, nil
		}
	}
	existing, found, err := s.getMention(ctx, m.Ticker, m.ID)
	if err != nil {
		return models.Mention{}, false, err
	}
	if found {
		return existing, false, nil
	}

	item, err := attributevalue.MarshalMap(toMentionItem(m))
	if err != nil {
		return models.Mention{}, false, fmt.Errorf("[DynamoDB] marshal mention: %w", err)
	}
	err = s.write(ctx, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           s.table(MentionsTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
	if isConditionFailed(err) {
		// Another writer stored the same ID between the read and the put.
		if existing, found, gerr := s.getMention(ctx, m.Ticker, m.ID); gerr == nil && found {
			return existing, false, nil
		}
	}
	if err != nil {
		return models.Mention{}, false, fmt.Errorf("[DynamoDB] insert mention %s: %w", m.Ticker, err)
	}
	if s.pending != nil {
		s.pending.mentions[key] = m
	}
	return m, true, nil
}

func (s *Store) getMention(ctx context.Context, ticker, id string) (models.Mention, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: s.table(MentionsTable),
		Key: map[string]types.AttributeValue{
			"ticker": &types.AttributeValueMemberS{Value: ticker},
			"id":     &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return models.Mention{}, false, fmt.Errorf("[DynamoDB] get mention %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return models.Mention{}, false, nil
	}
	var it mentionItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return models.Mention{}, false, fmt.Errorf("[DynamoDB] unmarshal mention: %w", err)
	}
	return it.model(), true, nil
}

// isConditionFailed reports whether err is a cancelled transaction whose only
// cause is a failed condition check.
func isConditionFailed(err error) bool {
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		return false
	}
	failed := false
	for _, r := range cancelled.CancellationReasons {
		switch aws.ToString(r.Code) {
		case "ConditionalCheckFailed":
			failed = true
		case "", "None":
		default:
			return false
		}
	}
	return failed
}
