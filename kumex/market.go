package kumex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ServiceStatus is the exchange's operating status
type ServiceStatus struct {
	Status  string `json:"status"` // open, close or cancelonly
	Message string `json:"msg"`
}

// Contract describes a futures contract
type Contract struct {
	Symbol             string          `json:"symbol"`
	RootSymbol         string          `json:"rootSymbol"`
	Type               string          `json:"type"`
	FirstOpenDate      int64           `json:"firstOpenDate"`
	ExpireDate         int64           `json:"expireDate"`
	SettleDate         int64           `json:"settleDate"`
	BaseCurrency       string          `json:"baseCurrency"`
	QuoteCurrency      string          `json:"quoteCurrency"`
	SettleCurrency     string          `json:"settleCurrency"`
	MaxOrderQty        int64           `json:"maxOrderQty"`
	MaxPrice           decimal.Decimal `json:"maxPrice"`
	LotSize            decimal.Decimal `json:"lotSize"`
	TickSize           decimal.Decimal `json:"tickSize"`
	IndexPriceTickSize decimal.Decimal `json:"indexPriceTickSize"`
	Multiplier         decimal.Decimal `json:"multiplier"`
	InitialMargin      decimal.Decimal `json:"initialMargin"`
	MaintainMargin     decimal.Decimal `json:"maintainMargin"`
	MaxRiskLimit       int64           `json:"maxRiskLimit"`
	MinRiskLimit       int64           `json:"minRiskLimit"`
	RiskStep           int64           `json:"riskStep"`
	MakerFeeRate       decimal.Decimal `json:"makerFeeRate"`
	TakerFeeRate       decimal.Decimal `json:"takerFeeRate"`
	IsInverse          bool            `json:"isInverse"`
	IsQuanto           bool            `json:"isQuanto"`
	MarkMethod         string          `json:"markMethod"`
	FairMethod         string          `json:"fairMethod"`
	Status             string          `json:"status"`
	FundingFeeRate     decimal.Decimal `json:"fundingFeeRate"`
	MarkPrice          decimal.Decimal `json:"markPrice"`
	IndexPrice         decimal.Decimal `json:"indexPrice"`
	LastTradePrice     decimal.Decimal `json:"lastTradePrice"`
	OpenInterest       string          `json:"openInterest"`
	Turnover24h        decimal.Decimal `json:"turnoverOf24h"`
	Volume24h          decimal.Decimal `json:"volumeOf24h"`
}

// Ticker is the best bid/ask and last trade of a contract
type Ticker struct {
	Sequence     int64           `json:"sequence"`
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	Size         int64           `json:"size"`
	Price        decimal.Decimal `json:"price"`
	BestBidSize  int64           `json:"bestBidSize"`
	BestBidPrice decimal.Decimal `json:"bestBidPrice"`
	BestAskSize  int64           `json:"bestAskSize"`
	BestAskPrice decimal.Decimal `json:"bestAskPrice"`
	TradeID      string          `json:"tradeId"`
	Timestamp    int64           `json:"ts"` // nanoseconds
}

// Time returns the ticker timestamp
func (t *Ticker) Time() time.Time {
	return time.Unix(0, t.Timestamp)
}

// PriceLevel is one [price, size] entry of an order book side
type PriceLevel [2]decimal.Decimal

// Price returns the level price
func (l PriceLevel) Price() decimal.Decimal { return l[0] }

// Size returns the level size
func (l PriceLevel) Size() decimal.Decimal { return l[1] }

// Level2Snapshot is a full aggregated order book
type Level2Snapshot struct {
	Symbol   string       `json:"symbol"`
	Sequence int64        `json:"sequence"`
	Asks     []PriceLevel `json:"asks"`
	Bids     []PriceLevel `json:"bids"`
}

// ServerTime returns the exchange clock
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var ms int64
	if err := c.Do(ctx, http.MethodGet, "/api/v1/timestamp", nil, &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// ServiceStatus returns the exchange's operating status
func (c *Client) ServiceStatus(ctx context.Context) (*ServiceStatus, error) {
	var status ServiceStatus
	if err := c.Do(ctx, http.MethodGet, "/api/v1/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ActiveContracts lists every contract open for trading
func (c *Client) ActiveContracts(ctx context.Context) ([]Contract, error) {
	var contracts []Contract
	if err := c.Do(ctx, http.MethodGet, "/api/v1/contracts/active", nil, &contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

// Contract returns the details of one contract
func (c *Client) Contract(ctx context.Context, symbol string) (*Contract, error) {
	if symbol == "" {
		return nil, &ConfigurationError{Field: "symbol", Err: fmt.Errorf("symbol is required")}
	}
	var contract Contract
	if err := c.Do(ctx, http.MethodGet, "/api/v1/contracts/"+url.PathEscape(symbol), nil, &contract); err != nil {
		return nil, err
	}
	return &contract, nil
}

// Ticker returns the real-time ticker of a contract
func (c *Client) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	var ticker Ticker
	if err := c.Do(ctx, http.MethodGet, "/api/v1/ticker", map[string]interface{}{"symbol": symbol}, &ticker); err != nil {
		return nil, err
	}
	return &ticker, nil
}

// Level2Snapshot returns the full aggregated order book of a contract
func (c *Client) Level2Snapshot(ctx context.Context, symbol string) (*Level2Snapshot, error) {
	var book Level2Snapshot
	if err := c.Do(ctx, http.MethodGet, "/api/v1/level2/snapshot", map[string]interface{}{"symbol": symbol}, &book); err != nil {
		return nil, err
	}
	return &book, nil
}
