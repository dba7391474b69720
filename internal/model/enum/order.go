package enum

// Wire vocabularies. Tokens travel verbatim lowercase on the wire and
// carry no behavior.

// OrderSide buy, sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) IsAvailable() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderType limit, market
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

func (t OrderType) IsAvailable() bool {
	return t == OrderTypeLimit || t == OrderTypeMarket
}

// OrderStatus open, partially filled, filled, cancelled, failed
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusFailed          OrderStatus = "failed"
)

func (s OrderStatus) IsAvailable() bool {
	switch s {
	case OrderStatusOpen, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}
