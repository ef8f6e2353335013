// Package notify announces completed DDL operations on Redis so other
// processes can react to schema changes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/hooks"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// Message is the payload published for each after event
type Message struct {
	RunID     string    `json:"run_id"`
	Operation string    `json:"operation"`
	Event     string    `json:"event"`
	Scope     string    `json:"scope"`
	Object    string    `json:"object"`
	Backend   string    `json:"backend"`
	At        time.Time `json:"at"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Channel receives every message with PUBLISH; empty disables it
	Channel string
	// Stream receives every message with XADD; empty disables it
	Stream string
	// MaxLen caps the stream length approximately; zero keeps everything
	MaxLen int64
	// BestEffort logs publish failures instead of failing the run
	BestEffort bool
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:    "localhost:6379",
		Channel: "ddl:events",
		Stream:  "ddl:log",
		MaxLen:  10000,
	}
}

// ParseRedisURL fills Addr, Password and DB of a default configuration
// from a redis:// URL
func ParseRedisURL(url string) (RedisConfig, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid redis url: %w", err)
	}
	config := DefaultRedisConfig()
	config.Addr, config.Password, config.DB = opts.Addr, opts.Password, opts.DB
	return config, nil
}

// RedisPublisher is a listener publishing after events to Redis
type RedisPublisher struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(config RedisConfig, logger *zap.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}
	return NewRedisPublisherWithClient(client, config, logger), nil
}

// NewRedisPublisherWithClient creates a publisher with an existing client
func NewRedisPublisherWithClient(client *redis.Client, config RedisConfig, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, config: config, logger: logger, now: time.Now}
}

// Attach registers the publisher on target's after events
func (p *RedisPublisher) Attach(target hooks.Target) error {
	for _, name := range []hooks.EventName{hooks.AfterCreate, hooks.AfterDrop} {
		if err := hooks.Listen(target, name, p); err != nil {
			return err
		}
	}
	return nil
}

// Invoke implements hooks.Listener
func (p *RedisPublisher) Invoke(ctx context.Context, ev hooks.Event) error {
	msg := p.message(ev)
	err := p.publish(ctx, msg)
	if err == nil {
		return nil
	}
	if p.config.BestEffort {
		p.logger.Warn("failed to publish ddl event",
			zap.String("event", msg.Event),
			zap.String("object", msg.Object),
			zap.Error(err))
		return nil
	}
	return err
}

func (p *RedisPublisher) message(ev hooks.Event) Message {
	msg := Message{
		Event:  string(ev.Name),
		Scope:  ev.Scope.String(),
		Object: ev.Target.ObjectName(),
		At:     p.now().UTC(),
	}
	if s, ok := ev.Target.(interface{ SchemaName() string }); ok {
		msg.Object = schema.QualifiedName(s.SchemaName(), msg.Object)
	}
	if ev.Runner != nil {
		msg.RunID, msg.Operation = ev.Runner.RunID(), ev.Runner.Operation()
	}
	if ev.Bind != nil {
		msg.Backend = ev.Bind.Backend().Name()
	}
	return msg
}

func (p *RedisPublisher) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode ddl event: %w", err)
	}

	if p.config.Stream != "" {
		err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.config.Stream,
			MaxLen: p.config.MaxLen,
			Approx: p.config.MaxLen > 0,
			Values: map[string]any{"event": msg.Event, "payload": payload},
		}).Err()
		if err != nil {
			return fmt.Errorf("failed to append to stream %s: %w", p.config.Stream, err)
		}
	}
	if p.config.Channel != "" {
		if err := p.client.Publish(ctx, p.config.Channel, payload).Err(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", p.config.Channel, err)
		}
	}
	return nil
}

// Close closes the Redis client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
