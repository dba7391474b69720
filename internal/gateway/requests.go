package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/event"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	defaultOrderBookDepth    = 10
	defaultOrderHistoryLimit = 50
)

// OrderSpec describes a new order. Price is required for limit orders.
type OrderSpec struct {
	Exchange string
	Market   string
	Side     enum.OrderSide
	Type     enum.OrderType
	Amount   decimal.Decimal
	Price    decimal.Decimal
}

func (s OrderSpec) validate() error {
	if s.Exchange == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "order exchange is empty")
	}
	if s.Market == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "order market is empty")
	}
	if !s.Side.IsAvailable() {
		return errors.Wrap(exception.ErrInvalidArgument, fmt.Sprintf("order side %q unavailable", s.Side))
	}
	if !s.Type.IsAvailable() {
		return errors.Wrap(exception.ErrInvalidArgument, fmt.Sprintf("order type %q unavailable", s.Type))
	}
	if !s.Amount.IsPositive() {
		return errors.Wrap(exception.ErrInvalidArgument, "order amount must be positive")
	}
	if s.Type == enum.OrderTypeLimit && !s.Price.IsPositive() {
		return errors.Wrap(exception.ErrInvalidArgument, "price is required for limit orders")
	}
	return nil
}

// CreateOrder places a new order. Besides the returned data, an
// OrderUpdate event is published on success and an Error event on
// failure, so bus-only observers see the outcome either way.
func (c *Client) CreateOrder(ctx context.Context, spec OrderSpec) (map[string]any, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	req := map[string]any{
		"type":       "create_order",
		"exchange":   spec.Exchange,
		"market":     spec.Market,
		"side":       string(spec.Side),
		"order_type": string(spec.Type),
		"amount":     spec.Amount.String(),
	}
	if spec.Type == enum.OrderTypeLimit {
		req["price"] = spec.Price.String()
	}

	frame, err := c.request(ctx, req)
	if err != nil {
		c.publishError(
			fmt.Sprintf("failed to create %s %s order for %s on %s", spec.Type, spec.Side, spec.Market, spec.Exchange),
			map[string]any{"exchange": spec.Exchange, "market": spec.Market},
		)
		return nil, err
	}

	data := frame.DataMap()
	c.engine.Put(event.New(event.KindOrderUpdate, data, originRemote))
	return data, nil
}

// CancelOrder cancels an existing order and publishes the resulting
// state change as an OrderUpdate event.
func (c *Client) CancelOrder(ctx context.Context, exchange, market, orderID string) (map[string]any, error) {
	req := map[string]any{
		"type":     "cancel_order",
		"exchange": exchange,
		"market":   market,
		"order_id": orderID,
	}

	frame, err := c.request(ctx, req)
	if err != nil {
		c.publishError(
			fmt.Sprintf("failed to cancel order %s for %s on %s", orderID, market, exchange),
			map[string]any{"exchange": exchange, "market": market, "order_id": orderID},
		)
		return nil, err
	}

	c.engine.Put(event.New(event.KindOrderUpdate, map[string]any{
		"order_id": orderID,
		"status":   string(enum.OrderStatusCancelled),
		"exchange": exchange,
		"market":   market,
	}, originRemote))
	return frame.DataMap(), nil
}

// GetOrder returns the current state of an order.
func (c *Client) GetOrder(ctx context.Context, exchange, market, orderID string) (map[string]any, error) {
	frame, err := c.request(ctx, map[string]any{
		"type":     "get_order",
		"exchange": exchange,
		"market":   market,
		"order_id": orderID,
	})
	if err != nil {
		return nil, err
	}
	return frame.DataMap(), nil
}

// GetOrderBook returns the order book up to the requested depth.
func (c *Client) GetOrderBook(ctx context.Context, exchange, market string, depth int) (map[string]any, error) {
	if depth <= 0 {
		depth = defaultOrderBookDepth
	}
	frame, err := c.request(ctx, map[string]any{
		"type":     "get_order_book",
		"exchange": exchange,
		"market":   market,
		"depth":    depth,
	})
	if err != nil {
		return nil, err
	}
	return frame.DataMap(), nil
}

// GetTicker returns the latest ticker for a market.
func (c *Client) GetTicker(ctx context.Context, exchange, market string) (map[string]any, error) {
	frame, err := c.request(ctx, map[string]any{
		"type":     "get_ticker",
		"exchange": exchange,
		"market":   market,
	})
	if err != nil {
		return nil, err
	}
	return frame.DataMap(), nil
}

// SubscribeOrderBook asks the engine to push order book updates for a market.
func (c *Client) SubscribeOrderBook(ctx context.Context, exchange, market string) error {
	return c.subscribe(ctx, enum.ChannelOrderBook, exchange, market)
}

// SubscribeTrades asks the engine to push trade updates for a market.
func (c *Client) SubscribeTrades(ctx context.Context, exchange, market string) error {
	return c.subscribe(ctx, enum.ChannelTrades, exchange, market)
}

func (c *Client) subscribe(ctx context.Context, channel enum.Channel, exchange, market string) error {
	if !channel.IsAvailable() {
		return errors.Wrap(exception.ErrInvalidArgument, fmt.Sprintf("subscription channel %q unavailable", channel))
	}
	_, err := c.request(ctx, map[string]any{
		"type":     "subscribe",
		"channel":  string(channel),
		"exchange": exchange,
		"market":   market,
	})
	return err
}

// GetBalances returns account balances on an exchange.
func (c *Client) GetBalances(ctx context.Context, exchange string) (map[string]any, error) {
	frame, err := c.request(ctx, map[string]any{
		"type":     "get_balances",
		"exchange": exchange,
	})
	if err != nil {
		return nil, err
	}
	return frame.DataMap(), nil
}

// GetOpenOrders returns the open orders for a market.
func (c *Client) GetOpenOrders(ctx context.Context, exchange, market string) ([]map[string]any, error) {
	frame, err := c.request(ctx, map[string]any{
		"type":     "get_open_orders",
		"exchange": exchange,
		"market":   market,
	})
	if err != nil {
		return nil, err
	}
	return frame.DataList(), nil
}

// GetOrderHistory returns up to limit historical orders for a market.
func (c *Client) GetOrderHistory(ctx context.Context, exchange, market string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = defaultOrderHistoryLimit
	}
	frame, err := c.request(ctx, map[string]any{
		"type":     "get_order_history",
		"exchange": exchange,
		"market":   market,
		"limit":    limit,
	})
	if err != nil {
		return nil, err
	}
	return frame.DataList(), nil
}

// request sends one correlated exchange and converts a non-success
// status into a RemoteError carrying the peer's message.
func (c *Client) request(ctx context.Context, req map[string]any) (Frame, error) {
	frame, err := c.send(ctx, req)
	if err != nil {
		return Frame{}, err
	}
	if !frame.successful() {
		return Frame{}, remoteError(frame)
	}
	return frame, nil
}

func (c *Client) publishError(message string, fields map[string]any) {
	payload := map[string]any{"message": message}
	for k, v := range fields {
		payload[k] = v
	}
	c.engine.Put(event.New(event.KindError, payload, originClient))
}
