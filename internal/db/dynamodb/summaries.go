package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

func millis(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func (s *Store) FindSummary(ctx context.Context, ticker string, date time.Time) (models.DailySummary, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: s.table(SummariesTable),
		Key: map[string]types.AttributeValue{
			"ticker": &types.AttributeValueMemberS{Value: ticker},
			"date":   millis(date),
		},
	})
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("[DynamoDB] get summary %s: %w", ticker, err)
	}
	if len(out.Item) == 0 {
		return models.DailySummary{}, db.ErrNotFound
	}

	var item summaryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return models.DailySummary{}, fmt.Errorf("[DynamoDB] unmarshal summary %s: %w", ticker, err)
	}
	return item.model(), nil
}

func (s *Store) UpsertSummary(ctx context.Context, sum models.DailySummary) (models.DailySummary, error) {
	now := s.now()
	existing, err := s.FindSummary(ctx, sum.Ticker, sum.Date)
	switch {
	case err == nil:
		sum.ID = existing.ID
		sum.CreatedAt = existing.CreatedAt
	case errors.Is(err, db.ErrNotFound):
		sum.ID = uuid.NewString()
		sum.CreatedAt = now
	default:
		return models.DailySummary{}, err
	}
	sum.UpdatedAt = now

	item, err := attributevalue.MarshalMap(toSummaryItem(sum))
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("[DynamoDB] marshal summary: %w", err)
	}
	if err := s.put(ctx, SummariesTable, item); err != nil {
		return models.DailySummary{}, fmt.Errorf("[DynamoDB] put summary %s: %w", sum.Ticker, err)
	}
	return sum, nil
}

func (s *Store) ListSummariesByDate(ctx context.Context, date time.Time, minMentions int) ([]models.DailySummary, error) {
	items, err := s.querySummaries(ctx, &dynamodb.QueryInput{
		TableName:              s.table(SummariesTable),
		IndexName:              aws.String(summaryDateIndex),
		KeyConditionExpression: aws.String("#d = :d"),
		FilterExpression:       aws.String("mentions_count >= :m"),
		ExpressionAttributeNames: map[string]string{
			"#d": "date",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": millis(date),
			":m": &types.AttributeValueMemberN{Value: strconv.Itoa(minMentions)},
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Ticker < items[j].Ticker })
	return items, nil
}

func (s *Store) ListSummariesByTicker(ctx context.Context, ticker string, from, to time.Time) ([]models.DailySummary, error) {
	return s.querySummaries(ctx, &dynamodb.QueryInput{
		TableName:              s.table(SummariesTable),
		KeyConditionExpression: aws.String("ticker = :t AND #d BETWEEN :from AND :to"),
		ExpressionAttributeNames: map[string]string{
			"#d": "date",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":    &types.AttributeValueMemberS{Value: ticker},
			":from": millis(from),
			":to":   millis(to),
		},
		ScanIndexForward: aws.Bool(false),
	})
}

func (s *Store) querySummaries(ctx context.Context, input *dynamodb.QueryInput) ([]models.DailySummary, error) {
	var summaries []models.DailySummary
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] query summaries: %w", err)
		}
		var page []summaryItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("[DynamoDB] unmarshal summaries: %w", err)
		}
		for _, it := range page {
			summaries = append(summaries, it.model())
		}
	}
	return summaries, nil
}
