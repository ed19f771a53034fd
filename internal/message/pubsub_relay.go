package message

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/atomex-go/swapengine/pkg/logging"
)

// swapTopicName is the per-swap gossip topic, one topic per swap ID:
// the engine only ever needs the two counter-parties of one swap to see
// each other's envelopes, not a whole order-book's worth of gossip.
func swapTopicName(swapID string) string {
	return fmt.Sprintf("/swapengine/swap/%s/1.0.0", swapID)
}

// PubSubRelay is the alternate Relay transport: libp2p-pubsub gossip
// scoped to one topic per swap, joined on a *pubsub.PubSub the
// caller's libp2p host already runs. Use this when the deployment
// already runs a libp2p swarm for other purposes (order book gossip);
// WebsocketRelay needs no such swarm and is the default.
type PubSubRelay struct {
	ps   *pubsub.PubSub
	self peer.ID
	log  *logging.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
}

// NewPubSubRelay wraps an already-running *pubsub.PubSub (the caller
// owns host/swarm lifecycle; this relay only joins/publishes topics).
func NewPubSubRelay(ps *pubsub.PubSub, self peer.ID) *PubSubRelay {
	return &PubSubRelay{
		ps:     ps,
		self:   self,
		log:    logging.GetDefault().Component("message-pubsub-relay"),
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
	}
}

func (r *PubSubRelay) topicFor(swapID string) (*pubsub.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.topics[swapID]; ok {
		return t, nil
	}
	t, err := r.ps.Join(swapTopicName(swapID))
	if err != nil {
		return nil, fmt.Errorf("message: join swap topic %s: %w", swapID, err)
	}
	r.topics[swapID] = t
	return t, nil
}

func (r *PubSubRelay) publish(ctx context.Context, typ Type, swapID string, payload interface{}) error {
	env, err := NewEnvelope(typ, swapID, payload)
	if err != nil {
		return err
	}
	topic, err := r.topicFor(swapID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("message: encode envelope: %w", err)
	}
	return topic.Publish(ctx, data)
}

func (r *PubSubRelay) SendPayment(ctx context.Context, p SwapPayment) error {
	return r.publish(ctx, TypeSwapPayment, p.SwapID, p)
}

func (r *PubSubRelay) SendSecret(ctx context.Context, s SwapSecret) error {
	return r.publish(ctx, TypeSwapSecret, s.SwapID, s)
}

func (r *PubSubRelay) SendProof(ctx context.Context, swapID string, p ProofOfPossession) error {
	return r.publish(ctx, TypeProofOfPossession, swapID, p)
}

// Subscribe joins the swap's topic (if not already joined) and streams
// decoded envelopes from peers other than self.
func (r *PubSubRelay) Subscribe(ctx context.Context, swapID string) (<-chan *Envelope, error) {
	topic, err := r.topicFor(swapID)
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("message: subscribe swap topic %s: %w", swapID, err)
	}
	r.mu.Lock()
	r.subs[swapID] = sub
	r.mu.Unlock()

	out := make(chan *Envelope, 16)
	go func() {
		defer close(out)
		defer sub.Cancel()
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if msg.ReceivedFrom == r.self {
				continue
			}
			var env Envelope
			if err := json.Unmarshal(msg.Data, &env); err != nil {
				r.log.Warn("pubsub relay: malformed envelope", "error", err)
				continue
			}
			select {
			case out <- &env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close leaves every joined topic. The underlying *pubsub.PubSub and
// its libp2p host are owned by the caller and outlive this relay.
func (r *PubSubRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		sub.Cancel()
		delete(r.subs, id)
	}
	for id, t := range r.topics {
		t.Close()
		delete(r.topics, id)
	}
	return nil
}
