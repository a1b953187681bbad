package websocket

import "errors"

var (
	ErrMessageBufferFull = errors.New("message buffer is full")
	ErrClientClosed      = errors.New("client connection closed")
	ErrSendQueueFull     = errors.New("client send queue is full")
)
