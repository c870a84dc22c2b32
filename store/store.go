package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// condNotExists guards inserts against an existing key.
	condNotExists = "attribute_not_exists(#pk)"

	// condVersion guards replaces against a stale version token.
	condVersion = "attribute_exists(#pk) AND #version = :expected_version"
)

// API is the subset of the DynamoDB client used by Store.
// *dynamodb.Client satisfies it.
type API interface {
	dynamodb.ScanAPIClient
	dynamodb.DescribeTableAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Store provides schema-less entity operations over DynamoDB tables keyed by
// PartitionKey and RowKey.
type Store struct {
	client API
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Store instance.
func New(client API, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// TableName returns the physical table name for a logical table.
func (s *Store) TableName(table string) string {
	return s.config.TablePrefix + table
}

// EnsureTable creates the table if it does not exist and waits until it is active.
func (s *Store) EnsureTable(ctx context.Context, table string) error {
	name := s.TableName(table)

	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrPartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttrRowKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrPartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttrRowKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	} else {
		s.logger.Info("created table", "table", name)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	wait := time.Duration(s.config.TableWaitSeconds) * time.Second
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, wait); err != nil {
		return fmt.Errorf("wait for table %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the table exists.
func (s *Store) Exists(ctx context.Context, table string) (bool, error) {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.TableName(table))})
	if err == nil {
		return true, nil
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("describe table %s: %w", table, err)
}

// ListAll returns every record in the table.
// An absent table yields an empty slice, not an error.
func (s *Store) ListAll(ctx context.Context, table string) ([]*Record, error) {
	records := []*Record{}
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(s.TableName(table)),
		ConsistentRead: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return []*Record{}, nil
			}
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for _, raw := range page.Items {
			records = append(records, s.unmarshalRecord(raw))
		}
	}

	return records, nil
}

// Get retrieves a record by key, returning ErrNotFound if it is missing.
func (s *Store) Get(ctx context.Context, table, partitionKey, rowKey string) (*Record, error) {
	if partitionKey == "" || rowKey == "" {
		return nil, ErrNotFound
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.TableName(table)),
		Key:            Key(partitionKey, rowKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	return s.unmarshalRecord(result.Item), nil
}

// Add parses a JSON object and inserts it as a new record.
// PartitionKey and RowKey must be present and non-empty.
func (s *Store) Add(ctx context.Context, table string, payload []byte) (*Record, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return nil, err
	}
	pk, rk, _, rest, err := splitPayload(fields)
	if err != nil {
		return nil, err
	}

	rec := &Record{PartitionKey: pk, RowKey: rk, Fields: rest}
	if err := s.Insert(ctx, table, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update parses a JSON object and merges its fields onto the stored record.
// Fields absent from the payload are preserved. If the payload carries an
// ETag it must match the stored version. The write is conditioned on the
// version that was read, so a concurrent writer yields ErrConcurrentModification.
func (s *Store) Update(ctx context.Context, table string, payload []byte) (*Record, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return nil, err
	}
	pk, rk, etag, rest, err := splitPayload(fields)
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, table, pk, rk)
	if err != nil {
		return nil, err
	}
	if etag != nil && *etag != current.Version {
		return nil, ErrConcurrentModification
	}

	for name, v := range rest {
		current.Fields[name] = v
	}
	if err := s.Replace(ctx, table, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Insert writes a new record. It fails with ErrAlreadyExists if the key is
// taken. On success rec carries its first version and timestamp.
func (s *Store) Insert(ctx context.Context, table string, rec *Record) error {
	if rec.PartitionKey == "" || rec.RowKey == "" {
		return fmt.Errorf("%w: PartitionKey and RowKey are required", ErrInvalidEntity)
	}

	next := rec.Clone()
	next.Version = 1
	next.Timestamp = s.now().UTC()

	input := &dynamodb.PutItemInput{
		TableName:                aws.String(s.TableName(table)),
		Item:                     s.marshalRecord(next),
		ConditionExpression:      aws.String(condNotExists),
		ExpressionAttributeNames: map[string]string{"#pk": AttrPartitionKey},
	}

	_, err := s.client.PutItem(ctx, input)
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) && s.config.AutoCreateTables {
		if err := s.EnsureTable(ctx, table); err != nil {
			return err
		}
		_, err = s.client.PutItem(ctx, input)
	}
	if err := s.mapWriteError(err, ErrAlreadyExists); err != nil {
		return err
	}

	*rec = *next
	return nil
}

// Replace overwrites a stored record conditioned on rec.Version matching the
// stored version. On success rec carries the new version and timestamp.
func (s *Store) Replace(ctx context.Context, table string, rec *Record) error {
	if rec.PartitionKey == "" || rec.RowKey == "" {
		return fmt.Errorf("%w: PartitionKey and RowKey are required", ErrInvalidEntity)
	}

	next := rec.Clone()
	next.Version = rec.Version + 1
	next.Timestamp = s.now().UTC()

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.TableName(table)),
		Item:                s.marshalRecord(next),
		ConditionExpression: aws.String(condVersion),
		ExpressionAttributeNames: map[string]string{
			"#pk":      AttrPartitionKey,
			"#version": attrVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected_version": &types.AttributeValueMemberN{Value: rec.ETag()},
		},
	})
	if err := s.mapWriteError(err, ErrConcurrentModification); err != nil {
		return err
	}

	*rec = *next
	return nil
}

// Delete removes a record. Deleting an absent key or table is not an error.
func (s *Store) Delete(ctx context.Context, table, partitionKey, rowKey string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.TableName(table)),
		Key:       Key(partitionKey, rowKey),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// mapWriteError maps a failed condition to the given sentinel. Other errors
// are backend failures and keep their cause.
func (s *Store) mapWriteError(err error, conditionFailed error) error {
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return conditionFailed
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) && errors.Is(conditionFailed, ErrConcurrentModification) {
		return ErrNotFound
	}
	return fmt.Errorf("put item: %w", err)
}
