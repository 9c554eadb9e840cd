package client

import (
	"context"

	"voicerelay/domain"
	"voicerelay/websocket"
)

// WebSocketDialer returns a DialFunc that connects with gorilla/websocket.
func WebSocketDialer(opts websocket.DialOptions) DialFunc {
	return func(ctx context.Context, uri string) (domain.Transport, error) {
		conn, err := websocket.Dial(ctx, uri, opts)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
