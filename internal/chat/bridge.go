package chat

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const publicChannel = "public-room"

// Bridge relays public-room traffic between server instances through a
// Redis channel. Each instance tags its publishes with an origin id and
// drops its own payloads on the way back in, so local fan-out is never
// doubled. Relayed payloads are push-only here: the originating
// instance already persisted the row.
//
// Presence stays single-process; only the public stream crosses nodes.
type Bridge struct {
	redis      *redis.Client
	dispatcher *Dispatcher
	logger     *log.Logger
	origin     string

	cancel context.CancelFunc
	done   chan struct{}
}

type bridgeEnvelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

func NewBridge(redisClient *redis.Client, dispatcher *Dispatcher, logger *log.Logger) *Bridge {
	return &Bridge{
		redis:      redisClient,
		dispatcher: dispatcher,
		logger:     logger,
		origin:     uuid.NewString(),
		done:       make(chan struct{}),
	}
}

// PublishPublic sends an already-persisted public frame to the other
// instances. Failures are logged and dropped; local delivery already
// happened and the row is durable.
func (b *Bridge) PublishPublic(ctx context.Context, frame []byte) {
	env, _ := json.Marshal(bridgeEnvelope{Origin: b.origin, Payload: frame})
	if err := b.redis.Publish(ctx, publicChannel, env).Err(); err != nil {
		b.logger.Error("bridge publish failed", "error", err)
	}
}

// Start subscribes to the public channel and forwards foreign payloads
// to local connections until Stop is called.
func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	pubsub := b.redis.Subscribe(ctx, publicChannel)
	go func() {
		defer close(b.done)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.relay([]byte(msg.Payload))
			}
		}
	}()
}

// Stop tears the subscription down and waits for the relay loop.
func (b *Bridge) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
}

func (b *Bridge) relay(raw []byte) {
	var env bridgeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		b.logger.Warn("bridge received malformed envelope", "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.dispatcher.deliverLocal(env.Payload)
}
