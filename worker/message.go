package worker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jacentio/storefront/internal/digest"
	"github.com/jacentio/storefront/store"
)

// Actions understood by the Handler. Matching is case-insensitive.
const (
	ActionCreateOrder  = "create-order"
	ActionStatusUpdate = "status-update"
)

// Order record property names.
const (
	fieldOrderID    = "OrderId"
	fieldCustomerID = "CustomerId"
	fieldProductID  = "ProductId"
	fieldStatus     = "Status"
	fieldTotalPrice = "TotalPrice"
	fieldOrderDate  = "OrderDate"
	fieldQuantity   = "Quantity"
)

// OrderMessage is the queue payload describing one order mutation.
// JSON property names are matched case-insensitively.
type OrderMessage struct {
	Action     string    `json:"action"`
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	ProductID  string    `json:"productId"`
	Status     string    `json:"status"`
	TotalPrice float64   `json:"totalPrice"`
	OrderDate  time.Time `json:"orderDate"`
	Quantity   int       `json:"quantity"`
}

// orderDateLayouts are tried in order. Layouts without an offset are read
// as UTC.
var orderDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON decodes the message, accepting orderDate with or without a
// UTC offset and as a bare date.
func (m *OrderMessage) UnmarshalJSON(data []byte) error {
	type plain OrderMessage
	aux := struct {
		*plain
		OrderDate *string `json:"orderDate"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.OrderDate = time.Time{}
	if aux.OrderDate == nil {
		return nil
	}
	t, err := parseOrderDate(*aux.OrderDate)
	if err != nil {
		return err
	}
	m.OrderDate = t
	return nil
}

// parseOrderDate reads an ISO-8601 date or date-time. An empty string is the
// zero time.
func parseOrderDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid orderDate %q", s)
}

// parseMessage decodes and validates a queue body. Any error it returns is
// permanent: redelivering the same body cannot succeed.
func parseMessage(body string) (*OrderMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty message body")
	}

	var msg OrderMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.OrderID == "" || msg.CustomerID == "" {
		return nil, fmt.Errorf("missing required fields: orderId=%q customerId=%q", msg.OrderID, msg.CustomerID)
	}
	return &msg, nil
}

// action returns the normalized action name.
func (m *OrderMessage) action() string {
	return strings.ToLower(strings.TrimSpace(m.Action))
}

// record builds the full order record keyed by (customerId, orderId).
func (m *OrderMessage) record() *store.Record {
	rec := store.NewRecord(m.CustomerID, m.OrderID)
	rec.Fields[fieldOrderID] = store.StringValue(m.OrderID)
	rec.Fields[fieldCustomerID] = store.StringValue(m.CustomerID)
	rec.Fields[fieldProductID] = optionalString(m.ProductID)
	rec.Fields[fieldStatus] = optionalString(m.Status)
	rec.Fields[fieldTotalPrice] = store.DoubleValue(m.TotalPrice)
	rec.Fields[fieldQuantity] = store.IntValue(int64(m.Quantity))
	if m.OrderDate.IsZero() {
		rec.Fields[fieldOrderDate] = store.NullValue()
	} else {
		rec.Fields[fieldOrderDate] = store.StringValue(m.OrderDate.UTC().Format(time.RFC3339Nano))
	}
	return rec
}

func optionalString(s string) store.Value {
	if s == "" {
		return store.NullValue()
	}
	return store.StringValue(s)
}

// fingerprint digests the creation-time content of an order. Status is left
// out since status updates change it after creation.
func fingerprint(fields store.Fields) string {
	values := make(map[string]string, len(fields))
	for name, v := range fields {
		if name == fieldStatus {
			continue
		}
		values[name] = v.Kind().String() + ":" + v.String()
	}
	return digest.Of(values)
}
