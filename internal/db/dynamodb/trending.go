package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

func (s *Store) FindEntry(ctx context.Context, ticker string, category models.TrendingCategory, date time.Time) (models.TrendingEntry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: s.table(TrendingTable),
		Key: map[string]types.AttributeValue{
			"category_date": &types.AttributeValueMemberS{Value: categoryDateKey(category, date)},
			"ticker":        &types.AttributeValueMemberS{Value: ticker},
		},
	})
	if err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[DynamoDB] get trending %s/%s: %w", category, ticker, err)
	}
	if len(out.Item) == 0 {
		return models.TrendingEntry{}, db.ErrNotFound
	}

	var item trendingItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[DynamoDB] unmarshal trending: %w", err)
	}
	return item.model(), nil
}

func (s *Store) UpsertEntry(ctx context.Context, e models.TrendingEntry) (models.TrendingEntry, error) {
	now := s.now()
	existing, err := s.FindEntry(ctx, e.Ticker, e.Category, e.Date)
	switch {
	case err == nil:
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	case errors.Is(err, db.ErrNotFound):
		e.ID = uuid.NewString()
		e.CreatedAt = now
	default:
		return models.TrendingEntry{}, err
	}
	e.UpdatedAt = now

	item, err := attributevalue.MarshalMap(toTrendingItem(e))
	if err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[DynamoDB] marshal trending: %w", err)
	}
	if err := s.put(ctx, TrendingTable, item); err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[DynamoDB] put trending %s/%s: %w", e.Category, e.Ticker, err)
	}
	return e, nil
}

func (s *Store) partition(ctx context.Context, category models.TrendingCategory, date time.Time) ([]models.TrendingEntry, error) {
	input := &dynamodb.QueryInput{
		TableName:              s.table(TrendingTable),
		KeyConditionExpression: aws.String("category_date = :cd"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cd": &types.AttributeValueMemberS{Value: categoryDateKey(category, date)},
		},
	}

	var entries []models.TrendingEntry
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] query trending %s: %w", category, err)
		}
		var page []trendingItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("[DynamoDB] unmarshal trending: %w", err)
		}
		for _, it := range page {
			entries = append(entries, it.model())
		}
	}
	return entries, nil
}

func (s *Store) ListEntries(ctx context.Context, category models.TrendingCategory, date time.Time, limit int) ([]models.TrendingEntry, error) {
	entries, err := s.partition(ctx, category, date)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].Ticker < entries[j].Ticker
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) DeleteEntriesExcept(ctx context.Context, category models.TrendingCategory, date time.Time, keep []string) (int, error) {
	entries, err := s.partition(ctx, category, date)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, e := range entries {
		if slices.Contains(keep, e.Ticker) {
			continue
		}
		err := s.write(ctx, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: s.table(TrendingTable),
				Key: map[string]types.AttributeValue{
					"category_date": &types.AttributeValueMemberS{Value: categoryDateKey(category, date)},
					"ticker":        &types.AttributeValueMemberS{Value: e.Ticker},
				},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("[DynamoDB] delete trending %s/%s: %w", category, e.Ticker, err)
		}
		deleted++
	}
	return deleted, nil
}
