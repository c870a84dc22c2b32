package store

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- splitPayload Tests ---

func TestSplitPayload_ExtractsKeys(t *testing.T) {
	fields := Fields{
		"PartitionKey": StringValue("Customer"),
		"RowKey":       StringValue("c1"),
		"Name":         StringValue("Ada"),
	}

	pk, rk, etag, rest, err := splitPayload(fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pk != "Customer" || rk != "c1" {
		t.Errorf("expected key (Customer, c1), got (%q, %q)", pk, rk)
	}
	if etag != nil {
		t.Errorf("expected no etag, got %d", *etag)
	}
	if len(rest) != 1 || rest["Name"].Str() != "Ada" {
		t.Errorf("expected only Name in rest, got %v", rest)
	}
}

func TestSplitPayload_MissingKeys(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
	}{
		{"no PartitionKey", Fields{"RowKey": StringValue("r")}},
		{"no RowKey", Fields{"PartitionKey": StringValue("p")}},
		{"empty PartitionKey", Fields{"PartitionKey": StringValue(""), "RowKey": StringValue("r")}},
		{"null RowKey", Fields{"PartitionKey": StringValue("p"), "RowKey": NullValue()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, _, err := splitPayload(tt.fields)
			if !errors.Is(err, ErrInvalidEntity) {
				t.Errorf("expected ErrInvalidEntity, got %v", err)
			}
		})
	}
}

func TestSplitPayload_NumericKeyUsesText(t *testing.T) {
	pk, rk, _, _, err := splitPayload(Fields{
		"PartitionKey": StringValue("Product"),
		"RowKey":       IntValue(42),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pk != "Product" || rk != "42" {
		t.Errorf("expected (Product, 42), got (%q, %q)", pk, rk)
	}
}

func TestSplitPayload_ETag(t *testing.T) {
	tests := []struct {
		name     string
		etag     Value
		expected int64
		present  bool
	}{
		{"string", StringValue("3"), 3, true},
		{"number", IntValue(7), 7, true},
		{"weak form", StringValue(`W/"5"`), 5, true},
		{"wildcard", StringValue("*"), 0, false},
		{"null", NullValue(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, etag, _, err := splitPayload(Fields{
				"PartitionKey": StringValue("p"),
				"RowKey":       StringValue("r"),
				"ETag":         tt.etag,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (etag != nil) != tt.present {
				t.Fatalf("expected etag present=%v, got %v", tt.present, etag)
			}
			if etag != nil && *etag != tt.expected {
				t.Errorf("expected etag %d, got %d", tt.expected, *etag)
			}
		})
	}
}

func TestSplitPayload_MalformedETag(t *testing.T) {
	_, _, _, _, err := splitPayload(Fields{
		"PartitionKey": StringValue("p"),
		"RowKey":       StringValue("r"),
		"ETag":         StringValue("abc"),
	})
	if !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("expected ErrInvalidEntity, got %v", err)
	}
}

func TestSplitPayload_ReservedName(t *testing.T) {
	_, _, _, _, err := splitPayload(Fields{
		"PartitionKey": StringValue("p"),
		"RowKey":       StringValue("r"),
		"_version":     IntValue(9),
	})
	if !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("expected ErrInvalidEntity, got %v", err)
	}
}

func TestSplitPayload_DropsTimestamp(t *testing.T) {
	_, _, _, rest, err := splitPayload(Fields{
		"PartitionKey": StringValue("p"),
		"RowKey":       StringValue("r"),
		"Timestamp":    StringValue("2024-01-01T00:00:00Z"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rest["Timestamp"]; ok {
		t.Error("expected Timestamp to be dropped")
	}
}

// --- marshalRecord / unmarshalRecord Tests ---

func TestMarshalRecord_Full(t *testing.T) {
	s := &Store{}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &Record{
		PartitionKey: "C1",
		RowKey:       "O1",
		Version:      3,
		Timestamp:    ts,
		Fields: Fields{
			"Status":     StringValue("Submitted"),
			"Quantity":   IntValue(2),
			"TotalPrice": DoubleValue(19.98),
			"Paid":       BoolValue(true),
			"Note":       NullValue(),
		},
	}

	item := s.marshalRecord(rec)

	if v, ok := item["PartitionKey"].(*types.AttributeValueMemberS); !ok || v.Value != "C1" {
		t.Errorf("expected PartitionKey C1, got %#v", item["PartitionKey"])
	}
	if v, ok := item["_version"].(*types.AttributeValueMemberN); !ok || v.Value != "3" {
		t.Errorf("expected _version 3, got %#v", item["_version"])
	}
	if v, ok := item["_timestamp"].(*types.AttributeValueMemberS); !ok || v.Value != "2024-01-02T03:04:05Z" {
		t.Errorf("expected _timestamp, got %#v", item["_timestamp"])
	}
	if v, ok := item["Quantity"].(*types.AttributeValueMemberN); !ok || v.Value != "2" {
		t.Errorf("expected Quantity N 2, got %#v", item["Quantity"])
	}
	if v, ok := item["TotalPrice"].(*types.AttributeValueMemberN); !ok || v.Value != "19.98" {
		t.Errorf("expected TotalPrice N 19.98, got %#v", item["TotalPrice"])
	}
	if v, ok := item["Paid"].(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Errorf("expected Paid BOOL true, got %#v", item["Paid"])
	}
	if _, ok := item["Note"].(*types.AttributeValueMemberNULL); !ok {
		t.Errorf("expected Note NULL, got %#v", item["Note"])
	}
	doubles, ok := item["_doubles"].(*types.AttributeValueMemberL)
	if !ok || len(doubles.Value) != 1 {
		t.Fatalf("expected one entry in _doubles, got %#v", item["_doubles"])
	}
}

func TestMarshalRecord_NoDoubles(t *testing.T) {
	s := &Store{}
	item := s.marshalRecord(&Record{PartitionKey: "p", RowKey: "r", Fields: Fields{"n": IntValue(1)}})
	if _, ok := item["_doubles"]; ok {
		t.Error("expected no _doubles attribute when no double fields")
	}
}

func TestRecordRoundTrip_PreservesKinds(t *testing.T) {
	s := &Store{}
	rec := &Record{
		PartitionKey: "p",
		RowKey:       "r",
		Version:      1,
		Timestamp:    time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC),
		Fields: Fields{
			"whole":  DoubleValue(2),
			"small":  IntValue(7),
			"big":    IntValue(1 << 40),
			"text":   StringValue("x"),
			"flag":   BoolValue(false),
			"absent": NullValue(),
		},
	}

	got := s.unmarshalRecord(s.marshalRecord(rec))

	if !got.Fields.Equal(rec.Fields) {
		t.Errorf("fields differ after round trip:\n got %v\nwant %v", got.Fields, rec.Fields)
	}
	if got.Fields["whole"].Kind() != KindDouble {
		t.Errorf("expected whole to stay double, got %s", got.Fields["whole"].Kind())
	}
	if got.Fields["big"].Kind() != KindInt64 {
		t.Errorf("expected big to be int64, got %s", got.Fields["big"].Kind())
	}
	if got.Version != 1 || !got.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("expected version 1 and timestamp %v, got %d %v", rec.Timestamp, got.Version, got.Timestamp)
	}
}

func TestUnmarshalRecord_Minimal(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"PartitionKey": &types.AttributeValueMemberS{Value: "p"},
		"RowKey":       &types.AttributeValueMemberS{Value: "r"},
	}

	rec := s.unmarshalRecord(raw)

	if rec.Version != 0 {
		t.Errorf("expected Version 0 for missing version, got %d", rec.Version)
	}
	if !rec.Timestamp.IsZero() {
		t.Errorf("expected zero Timestamp, got %v", rec.Timestamp)
	}
	if len(rec.Fields) != 0 {
		t.Errorf("expected no fields, got %v", rec.Fields)
	}
}

func TestUnmarshalRecord_InvalidVersionType(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"_version": &types.AttributeValueMemberS{Value: "not-a-number"},
	}

	rec := s.unmarshalRecord(raw)

	if rec.Version != 0 {
		t.Errorf("expected Version 0 for wrong type, got %d", rec.Version)
	}
}

func TestUnmarshalRecord_ForeignShapes(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"PartitionKey": &types.AttributeValueMemberS{Value: "p"},
		"RowKey":       &types.AttributeValueMemberS{Value: "r"},
		"tags": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "a"},
			&types.AttributeValueMemberS{Value: "b"},
		}},
		"dims": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"w": &types.AttributeValueMemberN{Value: "3"},
		}},
		"huge": &types.AttributeValueMemberN{Value: "123456789012345678901234567890"},
	}

	rec := s.unmarshalRecord(raw)

	if got := rec.Fields["tags"]; got.Kind() != KindString || got.Str() != `["a","b"]` {
		t.Errorf("expected tags as JSON text, got %v (%s)", got, got.Kind())
	}
	if got := rec.Fields["dims"]; got.Kind() != KindString || got.Str() != `{"w":3}` {
		t.Errorf("expected dims as JSON text, got %v (%s)", got, got.Kind())
	}
	if got := rec.Fields["huge"]; got.Kind() != KindDouble {
		t.Errorf("expected huge number as double, got %s", got.Kind())
	}
}

// --- mapWriteError Tests ---

func TestMapWriteError_NilError(t *testing.T) {
	s := &Store{}
	if err := s.mapWriteError(nil, ErrAlreadyExists); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapWriteError_ConditionFailed(t *testing.T) {
	s := &Store{}
	condErr := &types.ConditionalCheckFailedException{Message: aws.String("failed")}

	if err := s.mapWriteError(condErr, ErrAlreadyExists); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if err := s.mapWriteError(condErr, ErrConcurrentModification); !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestMapWriteError_MissingTableOnReplace(t *testing.T) {
	s := &Store{}
	err := s.mapWriteError(&types.ResourceNotFoundException{}, ErrConcurrentModification)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMapWriteError_BackendErrorKeepsCause(t *testing.T) {
	s := &Store{}
	originalErr := errors.New("connection reset")

	err := s.mapWriteError(originalErr, ErrAlreadyExists)
	if !errors.Is(err, originalErr) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
	if IsConflict(err) {
		t.Error("backend error must not be reported as conflict")
	}
}
