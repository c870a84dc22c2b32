package client

import "time"

// Table names and partition keys used by the storefront.
const (
	TableCustomers = "Customers"
	TableProducts  = "Products"
	TableOrders    = "Orders"

	PartitionCustomer = "Customer"
	PartitionProduct  = "Product"
	PartitionOrder    = "Order"
)

// Order statuses.
const (
	StatusSubmitted  = "Submitted"
	StatusProcessing = "Processing"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

// Entity carries the key and version fields every stored row has.
type Entity struct {
	PartitionKey string     `json:"PartitionKey"`
	RowKey       string     `json:"RowKey"`
	Timestamp    *time.Time `json:"Timestamp,omitempty"`
	ETag         string     `json:"ETag,omitempty"`
}

// Customer is a row of the Customers table. Its ID is the RowKey.
type Customer struct {
	Entity
	Name            string `json:"Name"`
	Surname         string `json:"Surname"`
	Username        string `json:"Username"`
	Email           string `json:"Email"`
	ShippingAddress string `json:"ShippingAddress"`
}

// Product is a row of the Products table. Its ID is the RowKey.
type Product struct {
	Entity
	ProductName    string  `json:"ProductName"`
	Description    string  `json:"Description"`
	Price          float64 `json:"Price"`
	StockAvailable int     `json:"StockAvailable"`
	ImageURL       string  `json:"ImageUrl"`
}

// Order is a row of the Orders table. Its ID is the RowKey.
type Order struct {
	Entity
	CustomerID    string    `json:"CustomerId"`
	Username      string    `json:"Username"`
	CustomerEmail string    `json:"CustomerEmail"`
	ProductID     string    `json:"ProductId"`
	ProductName   string    `json:"ProductName"`
	OrderDate     time.Time `json:"OrderDate"`
	Quantity      int       `json:"Quantity"`
	UnitPrice     float64   `json:"UnitPrice"`
	TotalPrice    float64   `json:"TotalPrice"`
	Status        string    `json:"Status"`
}
