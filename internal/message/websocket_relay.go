package message

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atomex-go/swapengine/pkg/logging"
)

// WebsocketRelay is the default Relay transport: a persistent
// connection to the matchmaker relay, split into a readPump and a
// writePump with ping/pong keepalive, multiplexing envelopes by swap
// ID over the one connection.
type WebsocketRelay struct {
	conn *websocket.Conn
	log  *logging.Logger

	send chan *Envelope

	mu   sync.Mutex
	subs map[string]chan *Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

const (
	relayWriteWait  = 10 * time.Second
	relayPongWait   = 60 * time.Second
	relayPingPeriod = 30 * time.Second
)

// DialWebsocketRelay connects to a matchmaker relay endpoint (e.g.
// "wss://relay.example/swap-channel") and starts its read/write pumps.
func DialWebsocketRelay(ctx context.Context, url string) (*WebsocketRelay, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("message: dial relay %s: %w", url, err)
	}
	r := &WebsocketRelay{
		conn:   conn,
		log:    logging.GetDefault().Component("message-relay"),
		send:   make(chan *Envelope, 64),
		subs:   make(map[string]chan *Envelope),
		closed: make(chan struct{}),
	}
	go r.readPump()
	go r.writePump()
	return r, nil
}

func (r *WebsocketRelay) SendPayment(ctx context.Context, p SwapPayment) error {
	env, err := NewEnvelope(TypeSwapPayment, p.SwapID, p)
	if err != nil {
		return err
	}
	return r.enqueue(ctx, env)
}

func (r *WebsocketRelay) SendSecret(ctx context.Context, s SwapSecret) error {
	env, err := NewEnvelope(TypeSwapSecret, s.SwapID, s)
	if err != nil {
		return err
	}
	return r.enqueue(ctx, env)
}

func (r *WebsocketRelay) SendProof(ctx context.Context, swapID string, p ProofOfPossession) error {
	env, err := NewEnvelope(TypeProofOfPossession, swapID, p)
	if err != nil {
		return err
	}
	return r.enqueue(ctx, env)
}

func (r *WebsocketRelay) enqueue(ctx context.Context, env *Envelope) error {
	select {
	case r.send <- env:
		return nil
	case <-r.closed:
		return fmt.Errorf("message: relay connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers swapID for delivery and returns the channel
// envelopes for that swap arrive on. The channel is closed when ctx is
// canceled or the relay connection drops.
func (r *WebsocketRelay) Subscribe(ctx context.Context, swapID string) (<-chan *Envelope, error) {
	ch := make(chan *Envelope, 16)
	r.mu.Lock()
	r.subs[swapID] = ch
	r.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-r.closed:
		}
		r.mu.Lock()
		delete(r.subs, swapID)
		r.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (r *WebsocketRelay) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return r.conn.Close()
}

// readPump owns all reads: a read-deadline refreshed by pong frames,
// dispatching each decoded Envelope to its swap's subscriber channel.
func (r *WebsocketRelay) readPump() {
	defer r.Close()
	r.conn.SetReadDeadline(time.Now().Add(relayPongWait))
	r.conn.SetPongHandler(func(string) error {
		r.conn.SetReadDeadline(time.Now().Add(relayPongWait))
		return nil
	})
	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			r.log.Debug("relay read error", "error", err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			r.log.Warn("relay: malformed envelope", "error", err)
			continue
		}
		r.mu.Lock()
		ch, ok := r.subs[env.SwapID]
		r.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case ch <- &env:
		default:
			r.log.Warn("relay: subscriber channel full, dropping envelope", "swap_id", env.SwapID)
		}
	}
}

// writePump owns all writes: envelopes are drained from the send
// channel and written as text frames; a ticker sends ping frames to
// keep the connection alive through idle periods.
func (r *WebsocketRelay) writePump() {
	ticker := time.NewTicker(relayPingPeriod)
	defer func() {
		ticker.Stop()
		r.conn.Close()
	}()
	for {
		select {
		case env, ok := <-r.send:
			r.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if !ok {
				r.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				r.log.Error("relay: failed to marshal envelope", "error", err)
				continue
			}
			if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			r.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.closed:
			return
		}
	}
}
