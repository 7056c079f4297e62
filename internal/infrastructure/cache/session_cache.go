package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"playsync/internal/channel"
	"playsync/internal/domain"
)

const sessionTTL = 6 * time.Hour

// SessionCache fronts the durable channel-session repository with redis.
// Reads go through the cache; every write refreshes it. A cache failure is
// never fatal, the repository stays the source of truth.
type SessionCache struct {
	client *redis.Client
	inner  channel.Repository
}

func NewSessionCache(client *redis.Client, inner channel.Repository) *SessionCache {
	return &SessionCache{client: client, inner: inner}
}

func key(channelID string) string {
	return "channel_session:" + channelID
}

func (c *SessionCache) Find(ctx context.Context, channelID string) (*domain.ChannelSession, error) {
	raw, err := c.client.Get(ctx, key(channelID)).Result()
	if err == nil {
		var sess domain.ChannelSession
		if err := json.Unmarshal([]byte(raw), &sess); err == nil {
			return &sess, nil
		}
	}

	sess, err := c.inner.Find(ctx, channelID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, sess)
	return sess, nil
}

func (c *SessionCache) Save(ctx context.Context, sess *domain.ChannelSession) error {
	if err := c.inner.Save(ctx, sess); err != nil {
		return err
	}
	c.set(ctx, sess)
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, channelID string) error {
	if err := c.inner.Delete(ctx, channelID); err != nil {
		return err
	}
	return c.client.Del(ctx, key(channelID)).Err()
}

func (c *SessionCache) set(ctx context.Context, sess *domain.ChannelSession) {
	raw, err := json.Marshal(sess)
	if err != nil {
		return
	}
	c.client.Set(ctx, key(sess.ChannelID), raw, sessionTTL)
}
