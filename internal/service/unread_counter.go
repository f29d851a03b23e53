package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/domain"
)

// UnreadCounter keeps per-recipient unread notification counts in Redis so
// badge reads skip Postgres. Counts are advisory; Postgres rows remain the
// source of truth and every operation here is best-effort.
type UnreadCounter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewUnreadCounter creates a counter. A nil client disables counting.
func NewUnreadCounter(client *redis.Client, logger *zap.Logger) *UnreadCounter {
	return &UnreadCounter{client: client, logger: logger}
}

func unreadKey(recipientType domain.RecipientType, recipientID string) string {
	return fmt.Sprintf("unread:%s:%s", recipientType, recipientID)
}

// Incr bumps the recipient's unread count.
func (u *UnreadCounter) Incr(ctx context.Context, recipientType domain.RecipientType, recipientID string) {
	if u == nil || u.client == nil {
		return
	}
	if err := u.client.Incr(ctx, unreadKey(recipientType, recipientID)).Err(); err != nil {
		u.logger.Warn("unread counter incr", zap.Error(err))
	}
}

// Decr lowers the recipient's unread count, clamping at zero.
func (u *UnreadCounter) Decr(ctx context.Context, recipientType domain.RecipientType, recipientID string) {
	if u == nil || u.client == nil {
		return
	}
	key := unreadKey(recipientType, recipientID)
	val, err := u.client.Decr(ctx, key).Result()
	if err != nil {
		u.logger.Warn("unread counter decr", zap.Error(err))
		return
	}
	if val < 0 {
		if err := u.client.Set(ctx, key, 0, 0).Err(); err != nil {
			u.logger.Warn("unread counter clamp", zap.Error(err))
		}
	}
}

// Reset clears the recipient's unread count.
func (u *UnreadCounter) Reset(ctx context.Context, recipientType domain.RecipientType, recipientID string) {
	if u == nil || u.client == nil {
		return
	}
	if err := u.client.Del(ctx, unreadKey(recipientType, recipientID)).Err(); err != nil {
		u.logger.Warn("unread counter reset", zap.Error(err))
	}
}

// Count reads the recipient's unread count. Returns 0 when Redis is
// unavailable or the key is absent.
func (u *UnreadCounter) Count(ctx context.Context, recipientType domain.RecipientType, recipientID string) int64 {
	if u == nil || u.client == nil {
		return 0
	}
	val, err := u.client.Get(ctx, unreadKey(recipientType, recipientID)).Int64()
	if err != nil {
		if err != redis.Nil {
			u.logger.Warn("unread counter read", zap.Error(err))
		}
		return 0
	}
	return val
}
