// Package queue consumes the redis task stream with consumer-group
// semantics: unacked messages from dead consumers are reclaimed after an
// idle interval.
package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	log           zerolog.Logger
	handler       MessageHandler
}

func NewConsumer(client *redis.Client, stream, group, consumer string, claimInterval time.Duration, log zerolog.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		claimInterval: claimInterval,
		log:           log,
		handler:       handler,
	}
}

// EnsureGroup creates the consumer group, tolerating one that already
// exists.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.read(ctx); err != nil {
				c.log.Error().Err(err).Msg("stream read error")
				time.Sleep(2 * time.Second)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = c.claimStalled(ctx)
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    5 * time.Second,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		// Left unacked, the claim pass retries it.
		c.log.Error().Err(err).Str("message_id", msg.ID).Msg("handle message failed")
		return
	}
	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		c.log.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
	}
}

func (c *Consumer) claimStalled(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		if entry.Idle < c.claimInterval {
			continue
		}
		msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimInterval,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			c.log.Error().Err(err).Msg("claim error")
			continue
		}
		for _, msg := range msgs {
			c.process(ctx, msg)
		}
	}
	return nil
}
