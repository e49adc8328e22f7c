// Package dynamo implements the chapter content store on DynamoDB.
//
// Table layout: partition key book_id (S), sort key number (N). Chapter ids
// and permalinks are made unique with claim items that live in their own
// partitions ("ID#<id>", "PERMALINK#<permalink>", number 0) and are written
// in the same transaction as the chapter, so lookups by id or permalink are
// two strongly consistent GetItem calls and never touch a GSI.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Config selects the table and, for local development, the endpoint.
type Config struct {
	Table    string
	Region   string
	Endpoint string // optional, e.g. http://localhost:8000
}

// Store is the DynamoDB-backed content store.
type Store struct {
	client Client
	table  string
	logger *slog.Logger
}

var _ store.ChapterStore = (*Store)(nil)

const (
	idClaimPrefix        = "ID#"
	permalinkClaimPrefix = "PERMALINK#"
)

// chapterItem is the stored form of a chapter.
type chapterItem struct {
	BookID      string    `dynamodbav:"book_id"`
	Number      int       `dynamodbav:"number"`
	ID          string    `dynamodbav:"id"`
	VolumeID    string    `dynamodbav:"volume_id"`
	Name        string    `dynamodbav:"name"`
	Content     string    `dynamodbav:"content"`
	Permalink   string    `dynamodbav:"permalink"`
	DateCreated time.Time `dynamodbav:"date_created"`
	DateUpdated time.Time `dynamodbav:"date_updated"`
}

// claimItem reserves a unique value and points back at the owning chapter.
type claimItem struct {
	BookID      string `dynamodbav:"book_id"`
	Number      int    `dynamodbav:"number"`
	OwnerBookID string `dynamodbav:"owner_book_id"`
	OwnerNumber int    `dynamodbav:"owner_number"`
}

func toItem(c *domain.Chapter) chapterItem {
	return chapterItem{
		BookID:      c.BookID,
		Number:      c.Number,
		ID:          c.ID,
		VolumeID:    c.VolumeID,
		Name:        c.Name,
		Content:     c.Content,
		Permalink:   c.Permalink,
		DateCreated: c.DateCreated.UTC(),
		DateUpdated: c.DateUpdated.UTC(),
	}
}

func (it chapterItem) chapter() *domain.Chapter {
	c := &domain.Chapter{
		BookID:    it.BookID,
		Number:    it.Number,
		ID:        it.ID,
		VolumeID:  it.VolumeID,
		Name:      it.Name,
		Content:   it.Content,
		Permalink: it.Permalink,
	}
	c.DateCreated = it.DateCreated.UTC()
	c.DateUpdated = it.DateUpdated.UTC()
	return c
}

// New creates a store over an existing client.
func New(client Client, table string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, table: table, logger: logger}
}

// NewFromConfig loads the default AWS configuration and builds a store.
func NewFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	s := New(client, cfg.Table, logger)
	s.logger.Info("content store opened", "backend", "dynamodb", "table", cfg.Table, "region", cfg.Region)
	return s, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

func key(bookID string, number int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"book_id": &types.AttributeValueMemberS{Value: bookID},
		"number":  &types.AttributeValueMemberN{Value: strconv.Itoa(number)},
	}
}

func claimKey(prefix, value string) map[string]types.AttributeValue {
	return key(prefix+value, 0)
}

// InsertChapter writes the chapter and its id and permalink claims in one
// transaction. Each put is conditional on its key being free.
func (s *Store) InsertChapter(ctx context.Context, c *domain.Chapter) error {
	item, err := attributevalue.MarshalMap(toItem(c))
	if err != nil {
		return fmt.Errorf("marshal chapter: %w", err)
	}
	idClaim, err := attributevalue.MarshalMap(claimItem{
		BookID: idClaimPrefix + c.ID, OwnerBookID: c.BookID, OwnerNumber: c.Number,
	})
	if err != nil {
		return fmt.Errorf("marshal id claim: %w", err)
	}
	permalinkClaim, err := attributevalue.MarshalMap(claimItem{
		BookID: permalinkClaimPrefix + c.Permalink, OwnerBookID: c.BookID, OwnerNumber: c.Number,
	})
	if err != nil {
		return fmt.Errorf("marshal permalink claim: %w", err)
	}

	notExists := aws.String("attribute_not_exists(book_id)")
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.table), Item: item, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(s.table), Item: idClaim, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(s.table), Item: permalinkClaim, ConditionExpression: notExists}},
		},
	})
	return mapInsertError(err)
}

// mapInsertError maps a cancelled insert transaction to the sentinel of the
// first failed condition, by position in the transaction.
func mapInsertError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			switch i {
			case 0:
				return store.ErrDuplicateNumber
			case 1:
				return store.ErrAlreadyExists
			default:
				return store.ErrDuplicatePermalink
			}
		}
		// Cancelled for another reason, typically a concurrent transaction on the same keys.
		return store.ErrDuplicateNumber.WithCause(err)
	}
	return translate(err)
}

// translate maps SDK errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
		notFound   *types.ResourceNotFoundException
	)
	switch {
	case errors.As(err, &throughput), errors.As(err, &limit), errors.As(err, &internal):
		return store.ErrUnavailable.WithCause(err)
	case errors.As(err, &notFound):
		// Missing table, not a missing item.
		return store.ErrUnavailable.WithCause(err)
	}
	return err
}

// GetChapter implements store.ChapterStore.
func (s *Store) GetChapter(ctx context.Context, bookID string, number int) (*domain.Chapter, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(bookID, number),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, translate(err)
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}

	var it chapterItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal chapter: %w", err)
	}
	return it.chapter(), nil
}

// GetChapterByID implements store.ChapterStore.
func (s *Store) GetChapterByID(ctx context.Context, id string) (*domain.Chapter, error) {
	return s.getByClaim(ctx, idClaimPrefix, id)
}

// GetChapterByPermalink implements store.ChapterStore.
func (s *Store) GetChapterByPermalink(ctx context.Context, permalink string) (*domain.Chapter, error) {
	return s.getByClaim(ctx, permalinkClaimPrefix, permalink)
}

func (s *Store) getByClaim(ctx context.Context, prefix, value string) (*domain.Chapter, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            claimKey(prefix, value),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, translate(err)
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}

	var claim claimItem
	if err := attributevalue.UnmarshalMap(out.Item, &claim); err != nil {
		return nil, fmt.Errorf("unmarshal claim: %w", err)
	}
	return s.GetChapter(ctx, claim.OwnerBookID, claim.OwnerNumber)
}

// LatestChapter implements store.ChapterStore with a descending one-item query.
func (s *Store) LatestChapter(ctx context.Context, bookID string) (*domain.Chapter, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("book_id = :b"),
		ExpressionAttributeValues: partitionValues(bookID),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, translate(err)
	}
	if len(out.Items) == 0 {
		return nil, store.ErrNotFound
	}

	var it chapterItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, fmt.Errorf("unmarshal chapter: %w", err)
	}
	return it.chapter(), nil
}

func partitionValues(bookID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":b": &types.AttributeValueMemberS{Value: bookID},
	}
}

// ScanChapters implements store.ChapterStore, paging through the partition in number order.
func (s *Store) ScanChapters(ctx context.Context, bookID string) iter.Seq2[*domain.Chapter, error] {
	return func(yield func(*domain.Chapter, error) bool) {
		paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    aws.String("book_id = :b"),
			ExpressionAttributeValues: partitionValues(bookID),
			ScanIndexForward:          aws.Bool(true),
			ConsistentRead:            aws.Bool(true),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, translate(err))
				return
			}
			for _, raw := range page.Items {
				var it chapterItem
				if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
					yield(nil, fmt.Errorf("unmarshal chapter: %w", err))
					return
				}
				if !yield(it.chapter(), nil) {
					return
				}
			}
		}
	}
}

// UpdateChapter implements store.ChapterStore. The chapter must exist; its
// id and permalink never change, so the claims are left alone.
func (s *Store) UpdateChapter(ctx context.Context, c *domain.Chapter) error {
	item, err := attributevalue.MarshalMap(toItem(c))
	if err != nil {
		return fmt.Errorf("marshal chapter: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(book_id)"),
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return store.ErrNotFound
	}
	return translate(err)
}

// DeleteChapter implements store.ChapterStore, removing the chapter and its claims together.
func (s *Store) DeleteChapter(ctx context.Context, bookID string, number int) error {
	c, err := s.GetChapter(ctx, bookID, number)
	if err != nil {
		return err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(s.table),
				Key:                 key(bookID, number),
				ConditionExpression: aws.String("attribute_exists(book_id)"),
			}},
			{Delete: &types.Delete{TableName: aws.String(s.table), Key: claimKey(idClaimPrefix, c.ID)}},
			{Delete: &types.Delete{TableName: aws.String(s.table), Key: claimKey(permalinkClaimPrefix, c.Permalink)}},
		},
	})

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		return store.ErrNotFound
	}
	return translate(err)
}
