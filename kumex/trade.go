package kumex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order types
const (
	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

// OrderParams describes a new order. Zero values are omitted from the request.
type OrderParams struct {
	ClientOid     string // generated when empty
	Side          string
	Symbol        string
	Type          string // limit when empty
	Leverage      string
	Price         decimal.Decimal
	Size          int64
	Stop          string // up or down
	StopPriceType string // TP, IP or MP
	StopPrice     decimal.Decimal
	ReduceOnly    bool
	CloseOrder    bool
	ForceHold     bool
	TimeInForce   string // GTC or IOC
	PostOnly      bool
	Hidden        bool
	Iceberg       bool
	VisibleSize   int64
	Remark        string
}

// Validate checks the fields the exchange rejects outright
func (p *OrderParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if p.Side != SideBuy && p.Side != SideSell {
		return fmt.Errorf("side must be %q or %q, got %q", SideBuy, SideSell, p.Side)
	}
	orderType := p.Type
	if orderType == "" {
		orderType = OrderTypeLimit
	}
	if orderType == OrderTypeLimit && !p.Price.IsPositive() {
		return fmt.Errorf("limit orders require a positive price")
	}
	if p.Size <= 0 && !p.CloseOrder {
		return fmt.Errorf("size must be positive")
	}
	if p.Leverage == "" && !p.CloseOrder {
		return fmt.Errorf("leverage is required")
	}
	return nil
}

func (p *OrderParams) params() map[string]interface{} {
	clientOid := p.ClientOid
	if clientOid == "" {
		clientOid = uuid.NewString()
	}
	orderType := p.Type
	if orderType == "" {
		orderType = OrderTypeLimit
	}

	m := map[string]interface{}{
		"clientOid": clientOid,
		"side":      p.Side,
		"symbol":    p.Symbol,
		"type":      orderType,
	}
	setString(m, "leverage", p.Leverage)
	setString(m, "stop", p.Stop)
	setString(m, "stopPriceType", p.StopPriceType)
	setString(m, "timeInForce", p.TimeInForce)
	setString(m, "remark", p.Remark)
	if !p.Price.IsZero() {
		m["price"] = p.Price.String()
	}
	if !p.StopPrice.IsZero() {
		m["stopPrice"] = p.StopPrice.String()
	}
	if p.Size > 0 {
		m["size"] = p.Size
	}
	if p.VisibleSize > 0 {
		m["visibleSize"] = p.VisibleSize
	}
	setBool(m, "reduceOnly", p.ReduceOnly)
	setBool(m, "closeOrder", p.CloseOrder)
	setBool(m, "forceHold", p.ForceHold)
	setBool(m, "postOnly", p.PostOnly)
	setBool(m, "hidden", p.Hidden)
	setBool(m, "iceberg", p.Iceberg)
	return m
}

// OrderFilter narrows ListOrders. Zero values are omitted from the query.
type OrderFilter struct {
	Status      string // active or done
	Symbol      string
	Side        string
	Type        string
	StartAt     int64 // milliseconds
	EndAt       int64
	CurrentPage int
	PageSize    int
}

func (f *OrderFilter) params() map[string]interface{} {
	m := make(map[string]interface{})
	if f == nil {
		return m
	}
	setString(m, "status", f.Status)
	setString(m, "symbol", f.Symbol)
	setString(m, "side", f.Side)
	setString(m, "type", f.Type)
	if f.StartAt > 0 {
		m["startAt"] = f.StartAt
	}
	if f.EndAt > 0 {
		m["endAt"] = f.EndAt
	}
	if f.CurrentPage > 0 {
		m["currentPage"] = f.CurrentPage
	}
	if f.PageSize > 0 {
		m["pageSize"] = f.PageSize
	}
	return m
}

// Order is an order as reported by the exchange
type Order struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Type           string          `json:"type"`
	Side           string          `json:"side"`
	Price          decimal.Decimal `json:"price"`
	Size           int64           `json:"size"`
	Value          decimal.Decimal `json:"value"`
	DealValue      decimal.Decimal `json:"dealValue"`
	DealSize       int64           `json:"dealSize"`
	Stp            string          `json:"stp"`
	Stop           string          `json:"stop"`
	StopPriceType  string          `json:"stopPriceType"`
	StopTriggered  bool            `json:"stopTriggered"`
	StopPrice      decimal.Decimal `json:"stopPrice"`
	TimeInForce    string          `json:"timeInForce"`
	PostOnly       bool            `json:"postOnly"`
	Hidden         bool            `json:"hidden"`
	Iceberg        bool            `json:"iceberg"`
	Leverage       decimal.Decimal `json:"leverage"`
	ForceHold      bool            `json:"forceHold"`
	CloseOrder     bool            `json:"closeOrder"`
	ReduceOnly     bool            `json:"reduceOnly"`
	VisibleSize    int64           `json:"visibleSize"`
	ClientOid      string          `json:"clientOid"`
	Remark         string          `json:"remark"`
	IsActive       bool            `json:"isActive"`
	CancelExist    bool            `json:"cancelExist"`
	CreatedAt      int64           `json:"createdAt"`
	UpdatedAt      int64           `json:"updatedAt"`
	EndAt          int64           `json:"endAt"`
	OrderTime      int64           `json:"orderTime"`
	SettleCurrency string          `json:"settleCurrency"`
	Status         string          `json:"status"`
	FilledSize     int64           `json:"filledSize"`
	FilledValue    decimal.Decimal `json:"filledValue"`
}

// OrderPage is one page of ListOrders results
type OrderPage struct {
	CurrentPage int     `json:"currentPage"`
	PageSize    int     `json:"pageSize"`
	TotalNum    int     `json:"totalNum"`
	TotalPage   int     `json:"totalPage"`
	Items       []Order `json:"items"`
}

// PlaceOrder submits an order and returns the exchange order id
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) (string, error) {
	if err := c.requireAuth(); err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", &ConfigurationError{Field: "order", Err: err}
	}
	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/v1/orders", p.params(), &result); err != nil {
		return "", err
	}
	return result.OrderID, nil
}

// CancelOrder cancels an order and returns the ids actually cancelled
func (c *Client) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	if orderID == "" {
		return nil, &ConfigurationError{Field: "order id", Err: fmt.Errorf("order id is required")}
	}
	var result struct {
		CancelledOrderIDs []string `json:"cancelledOrderIds"`
	}
	if err := c.Do(ctx, http.MethodDelete, "/api/v1/orders/"+url.PathEscape(orderID), nil, &result); err != nil {
		return nil, err
	}
	return result.CancelledOrderIDs, nil
}

// ListOrders returns one page of orders matching f. f may be nil.
func (c *Client) ListOrders(ctx context.Context, f *OrderFilter) (*OrderPage, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	var page OrderPage
	if err := c.Do(ctx, http.MethodGet, "/api/v1/orders", f.params(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func setString(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func setBool(m map[string]interface{}, key string, value bool) {
	if value {
		m[key] = true
	}
}
