package event

// Kind describes the meaning of an event payload.
type Kind uint8

const (
	_kind_beg Kind = iota
	KindMarketData
	KindOrderUpdate
	KindTradeUpdate
	KindStrategyUpdate
	KindError
	KindInfo
	KindSystem
	_kind_end
)

func (k Kind) IsAvailable() bool {
	return k > _kind_beg && k < _kind_end
}

// ParseKind maps a kind token back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k := _kind_beg + 1; k < _kind_end; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) String() string {
	switch k {
	case KindMarketData:
		return "market_data"
	case KindOrderUpdate:
		return "order_update"
	case KindTradeUpdate:
		return "trade_update"
	case KindStrategyUpdate:
		return "strategy_update"
	case KindError:
		return "error"
	case KindInfo:
		return "info"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}
