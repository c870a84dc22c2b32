// Package client is a typed HTTP client for the storefront API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/storefront/worker"
)

// Client talks to the storefront API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client; Timeout is then ignored.
	HTTPClient *http.Client
}

// New creates a new client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// ListEntities returns every entity of a table decoded as T.
func ListEntities[T any](ctx context.Context, c *Client, table string) ([]T, error) {
	var out []T
	if err := c.do(ctx, http.MethodGet, tablePath(table), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEntity returns one entity decoded as T.
func GetEntity[T any](ctx context.Context, c *Client, table, partitionKey, rowKey string) (*T, error) {
	var out T
	if err := c.do(ctx, http.MethodGet, tablePath(table, partitionKey, rowKey), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddEntity inserts entity and returns the stored version of it.
func AddEntity[T any](ctx context.Context, c *Client, table string, entity T) (*T, error) {
	return writeEntity(ctx, c, http.MethodPost, table, entity)
}

// UpdateEntity merges entity onto the stored row. A non-empty ETag on the
// entity must match the stored version.
func UpdateEntity[T any](ctx context.Context, c *Client, table string, entity T) (*T, error) {
	return writeEntity(ctx, c, http.MethodPut, table, entity)
}

func writeEntity[T any](ctx context.Context, c *Client, method, table string, entity T) (*T, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("marshal entity: %w", err)
	}
	body, err := json.Marshal(map[string]string{"entityData": string(data)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out T
	if err := c.do(ctx, method, tablePath(table), bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEntity removes an entity. Deleting an absent entity succeeds.
func (c *Client) DeleteEntity(ctx context.Context, table, partitionKey, rowKey string) error {
	return c.do(ctx, http.MethodDelete, tablePath(table, partitionKey, rowKey), nil, "", nil)
}

// GetCustomerByUsername finds a customer by username, ignoring case.
func (c *Client) GetCustomerByUsername(ctx context.Context, username string) (*Customer, error) {
	customers, err := ListEntities[Customer](ctx, c, TableCustomers)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if strings.EqualFold(customers[i].Username, username) {
			return &customers[i], nil
		}
	}
	return nil, &Error{StatusCode: http.StatusNotFound, Message: "customer " + username + " not found"}
}

// CreateOrder prices a new order from the current product and stores it as
// Submitted.
func (c *Client) CreateOrder(ctx context.Context, customerID, productID string, quantity int) (*Order, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}

	product, err := GetEntity[Product](ctx, c, TableProducts, PartitionProduct, productID)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}
	customer, err := GetEntity[Customer](ctx, c, TableCustomers, PartitionCustomer, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", customerID, err)
	}

	now := c.now().UTC()
	order := Order{
		Entity:        Entity{PartitionKey: PartitionOrder, RowKey: uuid.NewString()},
		CustomerID:    customerID,
		Username:      customer.Username,
		CustomerEmail: customer.Email,
		ProductID:     productID,
		ProductName:   product.ProductName,
		OrderDate:     time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Quantity:      quantity,
		UnitPrice:     product.Price,
		TotalPrice:    product.Price * float64(quantity),
		Status:        StatusSubmitted,
	}
	return AddEntity(ctx, c, TableOrders, order)
}

// EnqueueOrder hands an order message to the order worker.
func (c *Client) EnqueueOrder(ctx context.Context, msg worker.OrderMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order message: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/orders/enqueue", bytes.NewReader(body), "application/json", nil)
}

// SendMessage posts a message to a queue.
func (c *Client) SendMessage(ctx context.Context, queue, message string) error {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/queue/"+url.PathEscape(queue), bytes.NewReader(body), "application/json", nil)
}

// ReceiveMessage takes one message off a queue. ok is false when the queue
// is empty.
func (c *Client) ReceiveMessage(ctx context.Context, queue string) (message string, ok bool, err error) {
	var out struct {
		Message *string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/queue/"+url.PathEscape(queue), nil, "", &out); err != nil {
		return "", false, err
	}
	if out.Message == nil {
		return "", false, nil
	}
	return *out.Message, true, nil
}

// UploadBlob stores a file in a container and returns its URL and stored name.
func (c *Client) UploadBlob(ctx context.Context, container, filename string, content io.Reader) (fileURL, name string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", "", fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", "", fmt.Errorf("close form: %w", err)
	}

	var out struct {
		URL      string `json:"url"`
		FileName string `json:"fileName"`
	}
	if err := c.do(ctx, http.MethodPost, "/blob/"+url.PathEscape(container), &buf, mw.FormDataContentType(), &out); err != nil {
		return "", "", err
	}
	return out.URL, out.FileName, nil
}

// do sends a request and decodes a JSON response into out when out is
// non-nil and the response has a body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp.StatusCode, respBody)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func responseError(status int, body []byte) *Error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &Error{StatusCode: status, Message: msg}
}

func tablePath(table string, keys ...string) string {
	parts := []string{"/table", url.PathEscape(table)}
	for _, k := range keys {
		parts = append(parts, url.PathEscape(k))
	}
	return strings.Join(parts, "/")
}
