package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/event"
	"main/internal/model/enum"
	"main/pkg/exception"
)

func limitOrder() OrderSpec {
	return OrderSpec{
		Exchange: "binance",
		Market:   "BTC-USDT",
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeLimit,
		Amount:   decimal.RequireFromString("0.5"),
		Price:    decimal.RequireFromString("50000"),
	}
}

func TestOrderSpecValidate(t *testing.T) {
	require.NoError(t, limitOrder().validate())

	noPrice := limitOrder()
	noPrice.Price = decimal.Zero
	err := noPrice.validate()
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "price is required for limit orders")

	// Market orders need no price.
	market := limitOrder()
	market.Type = enum.OrderTypeMarket
	market.Price = decimal.Zero
	require.NoError(t, market.validate())

	zeroAmount := limitOrder()
	zeroAmount.Amount = decimal.Zero
	require.ErrorIs(t, zeroAmount.validate(), exception.ErrInvalidArgument)

	badSide := limitOrder()
	badSide.Side = "hold"
	require.ErrorIs(t, badSide.validate(), exception.ErrInvalidArgument)

	noMarket := limitOrder()
	noMarket.Market = ""
	require.ErrorIs(t, noMarket.validate(), exception.ErrInvalidArgument)
}

func TestCreateOrderRejectsBadSpecBeforeSending(t *testing.T) {
	// Validation runs before any connection state is consulted, so a
	// disconnected client still reports the spec problem.
	client, _ := newTestClient(t, Config{Host: "localhost", Port: 9999, APIKey: "k"})

	spec := limitOrder()
	spec.Price = decimal.Zero
	_, err := client.CreateOrder(context.Background(), spec)
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
}

func TestCreateOrderSuccessPublishesOrderUpdate(t *testing.T) {
	peer := startPeer(t, peerOptions{
		handle: func(p *peerConn, req map[string]any) {
			require.Equal(t, "create_order", req["type"])
			assert.Equal(t, "buy", req["side"])
			assert.Equal(t, "limit", req["order_type"])
			assert.Equal(t, "0.5", req["amount"])
			assert.Equal(t, "50000", req["price"])
			p.respond(req, map[string]any{
				"order_id": "o-42",
				"status":   "open",
				"market":   req["market"],
			})
		},
	})
	client, engine := newTestClient(t, peer.cfg)
	updates := captureEvents(t, engine, event.KindOrderUpdate)
	require.NoError(t, client.Connect(context.Background()))

	data, err := client.CreateOrder(context.Background(), limitOrder())
	require.NoError(t, err)
	assert.Equal(t, "o-42", data["order_id"])

	ev := waitEvent(t, updates)
	assert.Equal(t, "trading_engine", ev.Origin)
	assert.Equal(t, "o-42", ev.Payload["order_id"])
	assert.Equal(t, "open", ev.Payload["status"])
}

func TestCreateOrderRemoteFailurePublishesError(t *testing.T) {
	peer := startPeer(t, peerOptions{
		handle: func(p *peerConn, req map[string]any) {
			p.reject(req, "insufficient balance")
		},
	})
	client, engine := newTestClient(t, peer.cfg)
	errs := captureEvents(t, engine, event.KindError)
	updates := captureEvents(t, engine, event.KindOrderUpdate)
	require.NoError(t, client.Connect(context.Background()))

	_, err := client.CreateOrder(context.Background(), limitOrder())
	require.Error(t, err)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "insufficient balance", remote.Message)

	ev := waitEvent(t, errs)
	assert.Equal(t, "gateway", ev.Origin)
	assert.Contains(t, ev.Payload["message"], "failed to create limit buy order")
	assert.Equal(t, "binance", ev.Payload["exchange"])
	assertNoEvent(t, updates)
}

func TestCancelOrderPublishesCancelledUpdate(t *testing.T) {
	peer := startPeer(t, peerOptions{
		handle: func(p *peerConn, req map[string]any) {
			require.Equal(t, "cancel_order", req["type"])
			require.Equal(t, "o-7", req["order_id"])
			p.respond(req, map[string]any{"order_id": "o-7"})
		},
	})
	client, engine := newTestClient(t, peer.cfg)
	updates := captureEvents(t, engine, event.KindOrderUpdate)
	require.NoError(t, client.Connect(context.Background()))

	_, err := client.CancelOrder(context.Background(), "binance", "BTC-USDT", "o-7")
	require.NoError(t, err)

	ev := waitEvent(t, updates)
	assert.Equal(t, "o-7", ev.Payload["order_id"])
	assert.Equal(t, "cancelled", ev.Payload["status"])
	assert.Equal(t, "binance", ev.Payload["exchange"])
	assert.Equal(t, "BTC-USDT", ev.Payload["market"])
}

func TestCancelOrderRemoteFailurePublishesError(t *testing.T) {
	peer := startPeer(t, peerOptions{
		handle: func(p *peerConn, req map[string]any) {
			p.reject(req, "order not found")
		},
	})
	client, engine := newTestClient(t, peer.cfg)
	errs := captureEvents(t, engine, event.KindError)
	require.NoError(t, client.Connect(context.Background()))

	_, err := client.CancelOrder(context.Background(), "binance", "BTC-USDT", "o-404")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "order not found", remote.Message)

	ev := waitEvent(t, errs)
	assert.Equal(t, "o-404", ev.Payload["order_id"])
}

func TestSubscribe(t *testing.T) {
	subs := make(chan map[string]any, 2)
	peer := startPeer(t, peerOptions{
		handle: func(p *peerConn, req map[string]any) {
			subs <- req
			p.respond(req, nil)
		},
	})
	client, _ := newTestClient(t, peer.cfg)
	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, client.SubscribeOrderBook(context.Background(), "binance", "BTC-USDT"))
	req := <-subs
	assert.Equal(t, "subscribe", req["type"])
	assert.Equal(t, "order_book", req["channel"])

	require.NoError(t, client.SubscribeTrades(context.Background(), "binance", "BTC-USDT"))
	req = <-subs
	assert.Equal(t, "trades", req["channel"])
}

func TestGetOpenOrdersReturnsList(t *testing.T) {
	peer := startPeer(t, peerOptions{
		handle: func(p *peerConn, req map[string]any) {
			switch req["type"] {
			case "get_open_orders":
				p.respond(req, []any{
					map[string]any{"order_id": "o-1"},
					map[string]any{"order_id": "o-2"},
				})
			case "get_order_history":
				assert.EqualValues(t, 50, req["limit"], "limit defaults when unset")
				p.respond(req, []any{})
			}
		},
	})
	client, _ := newTestClient(t, peer.cfg)
	require.NoError(t, client.Connect(context.Background()))

	orders, err := client.GetOpenOrders(context.Background(), "binance", "BTC-USDT")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-1", orders[0]["order_id"])

	history, err := client.GetOrderHistory(context.Background(), "binance", "BTC-USDT", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetOrderBookDefaultsDepth(t *testing.T) {
	peer := startPeer(t, peerOptions{
		handle: func(p *peerConn, req map[string]any) {
			assert.EqualValues(t, 10, req["depth"])
			p.respond(req, map[string]any{"bids": []any{}, "asks": []any{}})
		},
	})
	client, _ := newTestClient(t, peer.cfg)
	require.NoError(t, client.Connect(context.Background()))

	book, err := client.GetOrderBook(context.Background(), "binance", "BTC-USDT", 0)
	require.NoError(t, err)
	assert.Contains(t, book, "bids")
}
