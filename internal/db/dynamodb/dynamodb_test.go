package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/models"
)

// fakeClient records writes and keeps Mentions rows so GetItem and the
// created-index Query can answer from them. Other reads come back empty.
// Like DynamoDB it rejects a transaction that touches one item twice and
// cancels one whose attribute_not_exists condition fails.
type fakeClient struct {
	transactions [][]types.TransactWriteItem
	created      []string
	failWrites   error
	mentions     map[string]map[string]types.AttributeValue
	// staleReads makes that many mention GetItem calls miss.
	staleReads int
}

func mentionRowKey(item map[string]types.AttributeValue) string {
	ticker, _ := item["ticker"].(*types.AttributeValueMemberS)
	id, _ := item["id"].(*types.AttributeValueMemberS)
	if ticker == nil || id == nil {
		return ""
	}
	return ticker.Value + "#" + id.Value
}

func isMentionsTable(name *string) bool {
	return strings.HasSuffix(aws.ToString(name), MentionsTable)
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if isMentionsTable(in.TableName) {
		if f.staleReads > 0 {
			f.staleReads--
			return &dynamodb.GetItemOutput{}, nil
		}
		return &dynamodb.GetItemOutput{Item: f.mentions[mentionRowKey(in.Key)]}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	out := &dynamodb.QueryOutput{}
	if !isMentionsTable(in.TableName) || aws.ToString(in.IndexName) != mentionCreatedIndex {
		return out, nil
	}
	ticker := in.ExpressionAttributeValues[":t"].(*types.AttributeValueMemberS).Value
	for _, item := range f.mentions {
		if item["ticker"].(*types.AttributeValueMemberS).Value == ticker {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeClient) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func (f *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if f.failWrites != nil {
		return nil, f.failWrites
	}

	seen := map[string]bool{}
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	cancelled := false
	for i, item := range in.TransactItems {
		reasons[i].Code = aws.String("None")
		if item.Put == nil || !isMentionsTable(item.Put.TableName) {
			continue
		}
		key := mentionRowKey(item.Put.Item)
		if seen[key] {
			return nil, fmt.Errorf("ValidationException: transaction request cannot include multiple operations on one item")
		}
		seen[key] = true
		if item.Put.ConditionExpression != nil && f.mentions[key] != nil {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			cancelled = true
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{Message: aws.String("cancelled"), CancellationReasons: reasons}
	}

	for _, item := range in.TransactItems {
		if item.Put != nil && isMentionsTable(item.Put.TableName) {
			if f.mentions == nil {
				f.mentions = map[string]map[string]types.AttributeValue{}
			}
			f.mentions[mentionRowKey(item.Put.Item)] = item.Put.Item
		}
	}
	f.transactions = append(f.transactions, in.TransactItems)
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeClient) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	for _, c := range f.created {
		if c == name {
			return nil, &types.ResourceInUseException{Message: aws.String("exists")}
		}
	}
	f.created = append(f.created, name)
	return &dynamodb.CreateTableOutput{}, nil
}

var day = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func TestWithTx_CommitsInChunks(t *testing.T) {
	client := &fakeClient{}
	store := New(client, "test_")
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx db.Store) error {
		for i := 0; i < 250; i++ {
			if _, err := tx.UpsertSummary(ctx, models.DailySummary{Ticker: fmt.Sprintf("T%03d", i), Date: day, MentionsCount: 1}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, client.transactions, 3)
	assert.Len(t, client.transactions[0], 100)
	assert.Len(t, client.transactions[1], 100)
	assert.Len(t, client.transactions[2], 50)
	assert.Equal(t, "test_DailySummaries", aws.ToString(client.transactions[0][0].Put.TableName))
}

func TestWithTx_DiscardsOnError(t *testing.T) {
	client := &fakeClient{}
	store := New(client, "")
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx db.Store) error {
		if _, err := tx.UpsertEntry(ctx, models.TrendingEntry{Ticker: "AAPL", Category: models.CategoryBullish, Rank: 1, Date: day}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, client.transactions)
}

func TestInsertMention_WritesImmediately(t *testing.T) {
	client := &fakeClient{}
	store := New(client, "")

	m, created, err := store.InsertMention(context.Background(), models.Mention{
		Ticker: "TSLA", Text: "$TSLA", SentimentLabel: models.SentimentNegative, Source: models.SourceNews,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	require.Len(t, client.transactions, 1)
	put := client.transactions[0][0].Put
	require.NotNil(t, put)
	assert.Equal(t, MentionsTable, aws.ToString(put.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "TSLA"}, put.Item["ticker"])
	assert.Equal(t, "attribute_not_exists(id)", aws.ToString(put.ConditionExpression))
}

func TestInsertMention_SameIDAtDifferentTimesIsStoredOnce(t *testing.T) {
	client := &fakeClient{}
	store := New(client, "")
	ctx := context.Background()
	id := ingest.MentionID(ingest.ContentID(models.SourceNews, "https://example.com/aapl-beats"), "AAPL")

	first, created, err := store.InsertMention(ctx, models.Mention{
		ID: id, Ticker: "AAPL", Text: "AAPL beats", SentimentLabel: models.SentimentPositive,
		Source: models.SourceNews, CreatedAt: day.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.InsertMention(ctx, models.Mention{
		ID: id, Ticker: "AAPL", Text: "AAPL beats", SentimentLabel: models.SentimentPositive,
		Source: models.SourceNews, CreatedAt: day.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, again.CreatedAt.Equal(first.CreatedAt))

	assert.Len(t, client.transactions, 1)
	got, err := store.FetchMentions(ctx, db.MentionQuery{Ticker: "AAPL", Start: day, End: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].CreatedAt.Equal(day.Add(time.Hour)))
}

func TestInsertMention_LostRaceReturnsStoredRow(t *testing.T) {
	client := &fakeClient{}
	store := New(client, "")
	ctx := context.Background()

	_, _, err := store.InsertMention(ctx, models.Mention{ID: "m1", Ticker: "AAPL", Text: "first", CreatedAt: day})
	require.NoError(t, err)

	client.staleReads = 1
	got, created, err := store.InsertMention(ctx, models.Mention{ID: "m1", Ticker: "AAPL", Text: "second", CreatedAt: day.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "first", got.Text)
	assert.Len(t, client.transactions, 1)
}

func TestIsConditionFailed(t *testing.T) {
	cancelled := func(codes ...string) error {
		reasons := make([]types.CancellationReason, len(codes))
		for i, c := range codes {
			reasons[i].Code = aws.String(c)
		}
		return fmt.Errorf("wrapped: %w", &types.TransactionCanceledException{CancellationReasons: reasons})
	}

	assert.True(t, isConditionFailed(cancelled("ConditionalCheckFailed")))
	assert.True(t, isConditionFailed(cancelled("None", "ConditionalCheckFailed")))
	assert.False(t, isConditionFailed(cancelled("None", "ThrottlingError")))
	assert.False(t, isConditionFailed(cancelled("ConditionalCheckFailed", "TransactionConflict")))
	assert.False(t, isConditionFailed(errors.New("throttled")))
	assert.False(t, isConditionFailed(nil))
}

func TestWithTx_DropsRepeatedMentionIDs(t *testing.T) {
	client := &fakeClient{}
	store := New(client, "")
	ctx := context.Background()
	id := ingest.MentionID(ingest.ContentID(models.SourceReddit, "t3_abc"), "GME")

	var createdCount int
	err := store.WithTx(ctx, func(tx db.Store) error {
		for _, at := range []time.Time{day, day.Add(time.Minute)} {
			_, created, err := tx.InsertMention(ctx, models.Mention{ID: id, Ticker: "GME", CreatedAt: at})
			if err != nil {
				return err
			}
			if created {
				createdCount++
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, createdCount)
	require.Len(t, client.transactions, 1)
	assert.Len(t, client.transactions[0], 1)
}

func TestInsertMention_PropagatesWriteError(t *testing.T) {
	boom := errors.New("throttled")
	store := New(&fakeClient{failWrites: boom}, "")

	_, _, err := store.InsertMention(context.Background(), models.Mention{Ticker: "TSLA"})
	assert.ErrorIs(t, err, boom)
}

func TestFindSummary_NotFound(t *testing.T) {
	store := New(&fakeClient{}, "")
	_, err := store.FindSummary(context.Background(), "AAPL", day)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestMentionSortKey_OrdersByTimeThenID(t *testing.T) {
	keys := []string{
		mentionSortKey(day.Add(time.Hour), "b"),
		mentionSortKey(day, "z"),
		mentionSortKey(day.Add(time.Hour), "a"),
		mentionSortKey(day.Add(48*time.Hour), "a"),
	}
	sort.Strings(keys)

	assert.Equal(t, []string{
		mentionSortKey(day, "z"),
		mentionSortKey(day.Add(time.Hour), "a"),
		mentionSortKey(day.Add(time.Hour), "b"),
		mentionSortKey(day.Add(48*time.Hour), "a"),
	}, keys)
}

func TestEnsureTables_Idempotent(t *testing.T) {
	client := &fakeClient{}
	store := New(client, "dev_")

	require.NoError(t, store.EnsureTables(context.Background()))
	require.NoError(t, store.EnsureTables(context.Background()))
	assert.ElementsMatch(t, []string{"dev_Mentions", "dev_DailySummaries", "dev_TrendingStocks"}, client.created)
}
