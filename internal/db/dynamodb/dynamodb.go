// Package dynamodb stores mentions, summaries and trending rows in three
// DynamoDB tables. Writes made inside WithTx are buffered and committed with
// TransactWriteItems.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

const (
	MentionsTable  = "Mentions"
	SummariesTable = "DailySummaries"
	TrendingTable  = "TrendingStocks"

	summaryDateIndex    = "date-index"
	mentionCreatedIndex = "created-index"

	// maxTransactItems is the TransactWriteItems limit per call.
	maxTransactItems = 100
)

var _ db.Store = (*Store)(nil)

// Client is the subset of *dynamodb.Client the store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type Store struct {
	client Client
	prefix string
	now    func() time.Time

	// pending is non-nil on a transaction view.
	pending *txBuffer
}

// txBuffer holds the writes of one WithTx call. A transaction may touch an
// item only once, so mentions are tracked by key and a repeat is dropped.
type txBuffer struct {
	items    []types.TransactWriteItem
	mentions map[string]models.Mention
}

func New(client Client, tablePrefix string) *Store {
	return &Store{client: client, prefix: tablePrefix, now: time.Now}
}

func (s *Store) table(name string) *string {
	return aws.String(s.prefix + name)
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: s.table(SummariesTable),
		Limit:     aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] ping: %w", err)
	}
	return nil
}

func (s *Store) Close() {}

// WithTx buffers every write fn makes and commits them once fn returns nil.
// Reads inside fn observe committed data only. Buffers longer than one
// TransactWriteItems call are committed in consecutive chunks.
func (s *Store) WithTx(ctx context.Context, fn func(tx db.Store) error) error {
	if s.pending != nil {
		return fn(s)
	}

	pending := &txBuffer{mentions: make(map[string]models.Mention)}
	tx := &Store{client: s.client, prefix: s.prefix, now: s.now, pending: pending}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(ctx, pending.items)
}

func (s *Store) commit(ctx context.Context, items []types.TransactWriteItem) error {
	for i := 0; i < len(items); i += maxTransactItems {
		end := min(i+maxTransactItems, len(items))

		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[i:end],
		})
		if err != nil {
			if i > 0 {
				slog.Error("[DynamoDB] Transaction chunk failed after earlier chunks committed",
					slog.Int("committed", i),
					slog.Int("total", len(items)))
			}
			return fmt.Errorf("[DynamoDB] transact write items: %w", err)
		}
	}
	return nil
}

// write queues item on a transaction view or commits it immediately.
func (s *Store) write(ctx context.Context, item types.TransactWriteItem) error {
	if s.pending != nil {
		s.pending.items = append(s.pending.items, item)
		return nil
	}
	return s.commit(ctx, []types.TransactWriteItem{item})
}

func (s *Store) put(ctx context.Context, table string, item map[string]types.AttributeValue) error {
	return s.write(ctx, types.TransactWriteItem{
		Put: &types.Put{TableName: s.table(table), Item: item},
	})
}

// EnsureTables creates the three tables with the mention created-index and
// the summary date index when they do not exist yet. Meant for local DynamoDB.
func (s *Store) EnsureTables(ctx context.Context) error {
	tables := []*dynamodb.CreateTableInput{
		{
			TableName: s.table(MentionsTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("ticker"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("created_sk"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("ticker"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
			},
			LocalSecondaryIndexes: []types.LocalSecondaryIndex{
				{
					IndexName: aws.String(mentionCreatedIndex),
					KeySchema: []types.KeySchemaElement{
						{AttributeName: aws.String("ticker"), KeyType: types.KeyTypeHash},
						{AttributeName: aws.String("created_sk"), KeyType: types.KeyTypeRange},
					},
					Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
		{
			TableName: s.table(SummariesTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("ticker"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("date"), AttributeType: types.ScalarAttributeTypeN},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("ticker"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("date"), KeyType: types.KeyTypeRange},
			},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				{
					IndexName: aws.String(summaryDateIndex),
					KeySchema: []types.KeySchemaElement{
						{AttributeName: aws.String("date"), KeyType: types.KeyTypeHash},
						{AttributeName: aws.String("ticker"), KeyType: types.KeyTypeRange},
					},
					Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
		{
			TableName: s.table(TrendingTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("category_date"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("ticker"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("category_date"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("ticker"), KeyType: types.KeyTypeRange},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	}

	for _, in := range tables {
		_, err := s.client.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			continue
		}
		if err != nil {
			return fmt.Errorf("[DynamoDB] create table %s: %w", aws.ToString(in.TableName), err)
		}
		slog.Info("[DynamoDB] Created table", slog.String("table", aws.ToString(in.TableName)))
	}
	return nil
}
