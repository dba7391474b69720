package exception

import "errors"

// Gateway errors
var (
	ErrGatewayNotConnected     = errors.New("gateway: not connected")
	ErrGatewayConnectFailed    = errors.New("gateway: connect failed")
	ErrGatewayRequestTimeout   = errors.New("gateway: request timeout")
	ErrGatewayConnectionClosed = errors.New("gateway: connection closed")
	ErrGatewayProtocol         = errors.New("gateway: protocol error")
)
