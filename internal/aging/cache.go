package aging

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const (
	generationKey = "aging:report:generation"
	// InvalidationChannel receives a message whenever posted ledger entries
	// change. Invalidate publishes the generation it reached.
	InvalidationChannel = "aging.ledger.changed"
)

// Cache keeps generated reports in Redis. Every key embeds the current
// generation; advancing it makes older reports unreachable until their TTL
// removes them.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache binds the report cache to a Redis client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Generation returns the current report generation, starting at 1.
func (c *Cache) Generation(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	if err := c.client.SetNX(ctx, generationKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	return c.client.Get(ctx, generationKey).Int64()
}

// Report returns the report cached for the source content and request, or
// builds and stores it. The boolean reports a cache hit. Without Redis or a
// source key every call builds.
func (c *Cache) Report(ctx context.Context, sourceKey string, req Request, build func(context.Context) (Report, error)) (Report, bool, error) {
	if !c.enabled() || sourceKey == "" {
		report, err := build(ctx)
		return report, false, err
	}
	gen, err := c.Generation(ctx)
	if err != nil {
		return Report{}, false, err
	}
	key := reportKey(gen, sourceKey, req)

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Report
		if err := json.Unmarshal(payload, &cached); err != nil {
			return Report{}, false, fmt.Errorf("aging: decode cached report: %w", err)
		}
		return cached, true, nil
	case !errors.Is(err, redis.Nil):
		return Report{}, false, err
	}

	report, err := build(ctx)
	if err != nil {
		return Report{}, false, err
	}
	if payload, err = json.Marshal(report); err != nil {
		return Report{}, false, err
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return Report{}, false, err
	}
	return report, false, nil
}

// Invalidate advances the generation and announces it on InvalidationChannel.
func (c *Cache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, InvalidationChannel, strconv.FormatInt(gen, 10)).Err()
}

// ListenForInvalidation subscribes to ledger change messages until ctx ends.
// A numeric payload at or below the current generation was already applied;
// a higher one is adopted, and any other payload advances the generation.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if !c.enabled() {
		return nil
	}
	if channel == "" {
		channel = InvalidationChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				_ = c.apply(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (c *Cache) apply(ctx context.Context, payload string) error {
	announced, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return c.client.Incr(ctx, generationKey).Err()
	}
	current, err := c.Generation(ctx)
	if err != nil || announced <= current {
		return err
	}
	return c.client.Set(ctx, generationKey, announced, 0).Err()
}

// reportKey fingerprints the source content together with every request
// parameter that changes the report.
func reportKey(gen int64, sourceKey string, req Request) string {
	h, _ := blake2b.New256(nil)
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	write(sourceKey)
	write(DateOnly(req.AsOf).Format(time.DateOnly))
	for _, field := range RequiredFields {
		write(string(field) + "=" + strconv.Itoa(req.Mapping[field]))
	}
	for _, code := range req.Accounts.Codes() {
		write(code)
	}
	for _, b := range req.Buckets {
		write(b.Name + "|" + b.Label())
	}
	write(string(req.Policy))
	return fmt.Sprintf("aging:report:%d:%s", gen, hex.EncodeToString(h.Sum(nil)))
}
