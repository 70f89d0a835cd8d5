package kumex

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// AccountOverview is the margin account summary of one settlement currency
type AccountOverview struct {
	AccountEquity    decimal.Decimal `json:"accountEquity"`
	UnrealisedPNL    decimal.Decimal `json:"unrealisedPNL"`
	MarginBalance    decimal.Decimal `json:"marginBalance"`
	PositionMargin   decimal.Decimal `json:"positionMargin"`
	OrderMargin      decimal.Decimal `json:"orderMargin"`
	FrozenFunds      decimal.Decimal `json:"frozenFunds"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Currency         string          `json:"currency"`
}

// Position is the open position of one contract
type Position struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	AutoDeposit       bool            `json:"autoDeposit"`
	MaintMarginReq    decimal.Decimal `json:"maintMarginReq"`
	RiskLimit         int64           `json:"riskLimit"`
	RealLeverage      decimal.Decimal `json:"realLeverage"`
	CrossMode         bool            `json:"crossMode"`
	DelevPercentage   decimal.Decimal `json:"delevPercentage"`
	OpeningTimestamp  int64           `json:"openingTimestamp"`
	CurrentTimestamp  int64           `json:"currentTimestamp"`
	CurrentQty        int64           `json:"currentQty"`
	CurrentCost       decimal.Decimal `json:"currentCost"`
	CurrentComm       decimal.Decimal `json:"currentComm"`
	UnrealisedCost    decimal.Decimal `json:"unrealisedCost"`
	RealisedGrossCost decimal.Decimal `json:"realisedGrossCost"`
	RealisedCost      decimal.Decimal `json:"realisedCost"`
	IsOpen            bool            `json:"isOpen"`
	MarkPrice         decimal.Decimal `json:"markPrice"`
	MarkValue         decimal.Decimal `json:"markValue"`
	PosCost           decimal.Decimal `json:"posCost"`
	PosCross          decimal.Decimal `json:"posCross"`
	PosInit           decimal.Decimal `json:"posInit"`
	PosComm           decimal.Decimal `json:"posComm"`
	PosLoss           decimal.Decimal `json:"posLoss"`
	PosMargin         decimal.Decimal `json:"posMargin"`
	PosMaint          decimal.Decimal `json:"posMaint"`
	MaintMargin       decimal.Decimal `json:"maintMargin"`
	RealisedGrossPnl  decimal.Decimal `json:"realisedGrossPnl"`
	RealisedPnl       decimal.Decimal `json:"realisedPnl"`
	UnrealisedPnl     decimal.Decimal `json:"unrealisedPnl"`
	UnrealisedPnlPcnt decimal.Decimal `json:"unrealisedPnlPcnt"`
	UnrealisedRoePcnt decimal.Decimal `json:"unrealisedRoePcnt"`
	AvgEntryPrice     decimal.Decimal `json:"avgEntryPrice"`
	LiquidationPrice  decimal.Decimal `json:"liquidationPrice"`
	BankruptPrice     decimal.Decimal `json:"bankruptPrice"`
	SettleCurrency    string          `json:"settleCurrency"`
}

// InstanceServer is a push endpoint handed out with a bullet token
type InstanceServer struct {
	Endpoint     string `json:"endpoint"`
	Protocol     string `json:"protocol"`
	Encrypt      bool   `json:"encrypt"`
	PingInterval int64  `json:"pingInterval"` // milliseconds
	PingTimeout  int64  `json:"pingTimeout"`  // milliseconds
}

// PingIntervalDuration returns the heartbeat interval
func (s InstanceServer) PingIntervalDuration() time.Duration {
	return time.Duration(s.PingInterval) * time.Millisecond
}

// PingTimeoutDuration returns how long the server waits for a ping
func (s InstanceServer) PingTimeoutDuration() time.Duration {
	return time.Duration(s.PingTimeout) * time.Millisecond
}

// BulletToken grants access to the push feed
type BulletToken struct {
	Token           string           `json:"token"`
	InstanceServers []InstanceServer `json:"instanceServers"`
}

// AccountOverview returns the margin account summary. An empty currency
// lets the exchange pick its default settlement currency.
func (c *Client) AccountOverview(ctx context.Context, currency string) (*AccountOverview, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	params := map[string]interface{}{}
	setString(params, "currency", currency)

	var overview AccountOverview
	if err := c.Do(ctx, http.MethodGet, "/api/v1/account-overview", params, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// Position returns the position of one contract
func (c *Client) Position(ctx context.Context, symbol string) (*Position, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, &ConfigurationError{Field: "symbol", Err: fmt.Errorf("symbol is required")}
	}
	var position Position
	if err := c.Do(ctx, http.MethodGet, "/api/v1/position", map[string]interface{}{"symbol": symbol}, &position); err != nil {
		return nil, err
	}
	return &position, nil
}

// Positions lists every position of the account
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	var positions []Position
	if err := c.Do(ctx, http.MethodGet, "/api/v1/positions", nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// PublicBullet requests a token for the public push feed. No credentials are
// needed.
func (c *Client) PublicBullet(ctx context.Context) (*BulletToken, error) {
	var token BulletToken
	if err := c.Do(ctx, http.MethodPost, "/api/v1/bullet-public", nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// PrivateBullet requests a token for the private push feed
func (c *Client) PrivateBullet(ctx context.Context) (*BulletToken, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	var token BulletToken
	if err := c.Do(ctx, http.MethodPost, "/api/v1/bullet-private", nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}
