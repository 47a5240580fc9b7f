// Package broker spreads group publishes across relay processes through Redis pub/sub.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/redis/go-redis/v9"
)

var (
	_ contract.IRegistry = (*RedisRegistry)(nil)
	_ contract.Worker    = (*Subscriber)(nil)
)

// LocalRegistry is the in-process registry every relay keeps for its own sessions.
type LocalRegistry interface {
	contract.IRegistry
	Members(group domain.GroupName) []contract.Member
}

type envelope struct {
	Node  string           `json:"node"`
	Group domain.GroupName `json:"group"`
	Event event.Event      `json:"event"`
}

// RedisRegistry keeps memberships local and sends publishes through one Redis
// channel. Every relay, the publisher included, delivers from its subscription,
// so a single connection carries all events in publish order.
type RedisRegistry struct {
	log     *slog.Logger
	client  *redis.Client
	local   LocalRegistry
	channel string
	node    string
}

func NewRedisRegistry(log *slog.Logger, client *redis.Client, local LocalRegistry, prefix string) *RedisRegistry {
	node := uuid.NewString()
	return &RedisRegistry{
		log:     log.With("node", node),
		client:  client,
		local:   local,
		channel: prefix + "groups",
		node:    node,
	}
}

func (r *RedisRegistry) Join(group domain.GroupName, member contract.Member) {
	r.local.Join(group, member)
}

func (r *RedisRegistry) Leave(group domain.GroupName, member contract.Member) {
	r.local.Leave(group, member)
}

func (r *RedisRegistry) LeaveAll(member contract.Member) {
	r.local.LeaveAll(member)
}

// Publish returns the number of local members at publish time. When Redis is
// unreachable the event still reaches the local members.
func (r *RedisRegistry) Publish(ctx context.Context, group domain.GroupName, evt event.Event) int {
	payload, err := json.Marshal(envelope{Node: r.node, Group: group, Event: evt})
	if err != nil {
		r.log.Error("Cannot encode event", "group", group, "error", err)
		return 0
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Warn("Redis publish failed, delivering locally", "group", group, "error", err)
		return r.local.Publish(ctx, group, evt)
	}
	return len(r.local.Members(group))
}

// Subscriber returns the worker feeding the local registry from Redis.
func (r *RedisRegistry) Subscriber() *Subscriber {
	return &Subscriber{registry: r}
}

type Subscriber struct {
	registry *RedisRegistry
}

func (s *Subscriber) Run(ctx context.Context) error {
	r := s.registry
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("Subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("Malformed broker message", "error", err)
				continue
			}
			r.local.Publish(ctx, env.Group, env.Event)
		}
	}
}
