// Package ddbtest provides an in-memory DynamoDB double for tests.
//
// It understands tables keyed by PartitionKey/RowKey and the two condition
// shapes the store writes with: "key must not exist" and "version must
// match" (any condition carrying an :expected_version value).
package ddbtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	partitionKey = "PartitionKey"
	rowKey       = "RowKey"
)

// Client is an in-memory stand-in for *dynamodb.Client.
type Client struct {
	mu sync.Mutex

	tables map[string]map[string]map[string]types.AttributeValue // table -> key -> item
	errs   map[string][]error
	calls  map[string]int

	// PageSize limits Scan pages; 0 returns everything in one page.
	PageSize int

	// BeforePut runs before each PutItem is evaluated, outside the lock.
	BeforePut func(input *dynamodb.PutItemInput)
}

// New returns an empty client with no tables.
func New(tables ...string) *Client {
	c := &Client{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
		errs:   make(map[string][]error),
		calls:  make(map[string]int),
	}
	for _, t := range tables {
		c.tables[t] = make(map[string]map[string]types.AttributeValue)
	}
	return c
}

// FailNext makes the next call of op ("GetItem", "PutItem", ...) return err.
// Repeated calls queue errors in order.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[op] = append(c.errs[op], err)
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// HasTable reports whether the table exists.
func (c *Client) HasTable(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tables[name]
	return ok
}

// Len returns the number of items in a table.
func (c *Client) Len(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables[table])
}

// Item returns the raw stored item, or nil.
func (c *Client) Item(table, pk, rk string) map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables[table][itemKey(pk, rk)]
}

// Seed stores a raw item without conditions, creating the table if needed.
func (c *Client) Seed(table string, item map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tables[table] == nil {
		c.tables[table] = make(map[string]map[string]types.AttributeValue)
	}
	c.tables[table][keyOf(item)] = item
}

func (c *Client) begin(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	if q := c.errs[op]; len(q) > 0 {
		c.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

// CreateTable implements the store client interface.
func (c *Client) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if err := c.begin("CreateTable"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	if _, ok := c.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	c.tables[name] = make(map[string]map[string]types.AttributeValue)
	return &dynamodb.CreateTableOutput{
		TableDescription: &types.TableDescription{TableName: params.TableName, TableStatus: types.TableStatusCreating},
	}, nil
}

// DescribeTable implements dynamodb.DescribeTableAPIClient.
func (c *Client) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if err := c.begin("DescribeTable"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	if _, ok := c.tables[name]; !ok {
		return nil, notFound(name)
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableName: params.TableName, TableStatus: types.TableStatusActive},
	}, nil
}

// GetItem implements the store client interface.
func (c *Client) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := c.begin("GetItem"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	table, ok := c.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	return &dynamodb.GetItemOutput{Item: table[keyOf(params.Key)]}, nil
}

// PutItem implements the store client interface.
func (c *Client) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := c.begin("PutItem"); err != nil {
		return nil, err
	}
	if c.BeforePut != nil {
		c.BeforePut(params)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	table, ok := c.tables[name]
	if !ok {
		return nil, notFound(name)
	}

	key := keyOf(params.Item)
	existing, exists := table[key]

	if params.ConditionExpression != nil {
		if expected, ok := params.ExpressionAttributeValues[":expected_version"]; ok {
			versionAttr := params.ExpressionAttributeNames["#version"]
			if !exists || !sameNumber(existing[versionAttr], expected) {
				return nil, conditionFailed()
			}
		} else if exists {
			return nil, conditionFailed()
		}
	}

	item := make(map[string]types.AttributeValue, len(params.Item))
	for k, v := range params.Item {
		item[k] = v
	}
	table[key] = item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem implements the store client interface.
func (c *Client) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := c.begin("DeleteItem"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	table, ok := c.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	delete(table, keyOf(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan implements dynamodb.ScanAPIClient. Items come back in key order.
func (c *Client) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := c.begin("Scan"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	name := aws.ToString(params.TableName)
	table, ok := c.tables[name]
	if !ok {
		return nil, notFound(name)
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		last := keyOf(params.ExclusiveStartKey)
		start = sort.SearchStrings(keys, last)
		if start < len(keys) && keys[start] == last {
			start++
		}
	}

	end := len(keys)
	if c.PageSize > 0 && start+c.PageSize < end {
		end = start + c.PageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, table[k])
	}
	out.Count = int32(len(out.Items))
	if end < len(keys) {
		lastItem := table[keys[end-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			partitionKey: lastItem[partitionKey],
			rowKey:       lastItem[rowKey],
		}
	}
	return out, nil
}

func keyOf(item map[string]types.AttributeValue) string {
	return itemKey(stringAttr(item[partitionKey]), stringAttr(item[rowKey]))
}

func itemKey(pk, rk string) string {
	return pk + "\x00" + rk
}

func stringAttr(av types.AttributeValue) string {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func sameNumber(a, b types.AttributeValue) bool {
	an, ok := a.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	bn, ok := b.(*types.AttributeValueMemberN)
	return ok && an.Value == bn.Value
}

func notFound(table string) error {
	return &types.ResourceNotFoundException{Message: aws.String(fmt.Sprintf("Requested resource not found: Table: %s not found", table))}
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}
