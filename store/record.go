package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the key and of the fields the store manages itself.
const (
	AttrPartitionKey = "PartitionKey"
	AttrRowKey       = "RowKey"

	attrVersion   = "_version"
	attrTimestamp = "_timestamp"
	attrDoubles   = "_doubles"
)

// Payload property names that are interpreted by the store rather than kept as fields.
const (
	propTimestamp = "Timestamp"
	propETag      = "ETag"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Key returns the primary key for a partition key and row key.
func Key(partitionKey, rowKey string) PK {
	return PK{
		AttrPartitionKey: &types.AttributeValueMemberS{Value: partitionKey},
		AttrRowKey:       &types.AttributeValueMemberS{Value: rowKey},
	}
}

// Record is one entity in a table.
type Record struct {
	PartitionKey string
	RowKey       string

	// Fields holds every attribute except the key and the managed fields.
	Fields Fields

	// Version is the optimistic lock token; 0 means never written.
	Version int64

	// Timestamp is the time of the last write.
	Timestamp time.Time
}

// NewRecord returns an unsaved record with an empty field bag.
func NewRecord(partitionKey, rowKey string) *Record {
	return &Record{
		PartitionKey: partitionKey,
		RowKey:       rowKey,
		Fields:       Fields{},
	}
}

// ETag renders the version token.
func (r *Record) ETag() string {
	return strconv.FormatInt(r.Version, 10)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = r.Fields.Clone()
	return &c
}

// MarshalJSON flattens the record into a single JSON object:
// PartitionKey, RowKey, Timestamp and ETag next to the fields.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+4)
	for name, v := range r.Fields {
		out[name] = v
	}
	out[AttrPartitionKey] = r.PartitionKey
	out[AttrRowKey] = r.RowKey
	out[propETag] = r.ETag()
	if !r.Timestamp.IsZero() {
		out[propTimestamp] = r.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// splitPayload separates the key and the optional version token from parsed
// payload fields. The returned Fields never contain key or managed names.
func splitPayload(fields Fields) (pk, rk string, etag *int64, rest Fields, err error) {
	rest = make(Fields, len(fields))
	for name, v := range fields {
		switch name {
		case AttrPartitionKey:
			pk = v.String()
		case AttrRowKey:
			rk = v.String()
		case propTimestamp:
			// server managed
		case propETag:
			if v.IsNull() || v.String() == "" || v.String() == "*" {
				continue
			}
			n, perr := strconv.ParseInt(strings.Trim(v.String(), `W/"`), 10, 64)
			if perr != nil {
				return "", "", nil, nil, fmt.Errorf("%w: malformed ETag %q", ErrInvalidEntity, v.String())
			}
			etag = &n
		default:
			if strings.HasPrefix(name, "_") {
				return "", "", nil, nil, fmt.Errorf("%w: property name %q is reserved", ErrInvalidEntity, name)
			}
			rest[name] = v
		}
	}

	if pk == "" {
		return "", "", nil, nil, fmt.Errorf("%w: PartitionKey is required", ErrInvalidEntity)
	}
	if rk == "" {
		return "", "", nil, nil, fmt.Errorf("%w: RowKey is required", ErrInvalidEntity)
	}
	return pk, rk, etag, rest, nil
}

// marshalRecord converts a record to a DynamoDB item.
func (s *Store) marshalRecord(r *Record) map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue, len(r.Fields)+5)
	var doubles []string

	for name, v := range r.Fields {
		switch v.Kind() {
		case KindString:
			item[name] = &types.AttributeValueMemberS{Value: v.Str()}
		case KindInt32, KindInt64:
			item[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(v.Int(), 10)}
		case KindDouble:
			item[name] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(v.Float(), 'g', -1, 64)}
			doubles = append(doubles, name)
		case KindBool:
			item[name] = &types.AttributeValueMemberBOOL{Value: v.Bool()}
		default:
			item[name] = &types.AttributeValueMemberNULL{Value: true}
		}
	}

	item[AttrPartitionKey] = &types.AttributeValueMemberS{Value: r.PartitionKey}
	item[AttrRowKey] = &types.AttributeValueMemberS{Value: r.RowKey}
	item[attrVersion] = &types.AttributeValueMemberN{Value: strconv.FormatInt(r.Version, 10)}
	item[attrTimestamp] = &types.AttributeValueMemberS{Value: r.Timestamp.UTC().Format(time.RFC3339Nano)}

	if len(doubles) > 0 {
		sort.Strings(doubles)
		list := make([]types.AttributeValue, len(doubles))
		for i, name := range doubles {
			list[i] = &types.AttributeValueMemberS{Value: name}
		}
		item[attrDoubles] = &types.AttributeValueMemberL{Value: list}
	}

	return item
}

// unmarshalRecord converts a DynamoDB item to a Record.
func (s *Store) unmarshalRecord(raw map[string]types.AttributeValue) *Record {
	r := &Record{Fields: make(Fields, len(raw))}

	doubles := map[string]bool{}
	if v, ok := raw[attrDoubles].(*types.AttributeValueMemberL); ok {
		for _, e := range v.Value {
			if name, ok := e.(*types.AttributeValueMemberS); ok {
				doubles[name.Value] = true
			}
		}
	}

	for name, av := range raw {
		switch name {
		case AttrPartitionKey:
			if v, ok := av.(*types.AttributeValueMemberS); ok {
				r.PartitionKey = v.Value
			}
		case AttrRowKey:
			if v, ok := av.(*types.AttributeValueMemberS); ok {
				r.RowKey = v.Value
			}
		case attrVersion:
			if v, ok := av.(*types.AttributeValueMemberN); ok {
				r.Version, _ = strconv.ParseInt(v.Value, 10, 64)
			}
		case attrTimestamp:
			if v, ok := av.(*types.AttributeValueMemberS); ok {
				r.Timestamp, _ = time.Parse(time.RFC3339Nano, v.Value)
			}
		case attrDoubles:
		default:
			r.Fields[name] = attributeToValue(av, doubles[name])
		}
	}

	return r
}

// attributeToValue converts a single attribute. Shapes the store never writes
// itself (lists, maps, sets, binary) come back as their JSON text.
func attributeToValue(av types.AttributeValue, double bool) Value {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return StringValue(v.Value)
	case *types.AttributeValueMemberN:
		if !double {
			if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
				return IntValue(n)
			}
		}
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return DoubleValue(f)
		}
		return StringValue(v.Value)
	case *types.AttributeValueMemberBOOL:
		return BoolValue(v.Value)
	case *types.AttributeValueMemberNULL:
		return NullValue()
	}

	var decoded any
	if err := attributevalue.Unmarshal(av, &decoded); err != nil {
		return NullValue()
	}
	text, err := json.Marshal(decoded)
	if err != nil {
		return NullValue()
	}
	return StringValue(string(text))
}
