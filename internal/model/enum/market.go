package enum

// MarketType spot, futures
type MarketType string

const (
	MarketTypeSpot    MarketType = "spot"
	MarketTypeFutures MarketType = "futures"
)

func (m MarketType) IsAvailable() bool {
	return m == MarketTypeSpot || m == MarketTypeFutures
}

// Channel names a push subscription stream.
type Channel string

const (
	ChannelOrderBook Channel = "order_book"
	ChannelTrades    Channel = "trades"
)

func (c Channel) IsAvailable() bool {
	return c == ChannelOrderBook || c == ChannelTrades
}
