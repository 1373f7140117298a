package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"livepoll/internal/model"
	"time"

	"github.com/redis/go-redis/v9"
)

// PollArchive mirrors ended polls into Redis so they outlive the process
// window that the in-memory history covers
type PollArchive interface {
	Archive(ctx context.Context, poll *model.Poll) error
	Get(ctx context.Context, pollID string) (*model.Poll, error)
	Recent(ctx context.Context, n int) ([]*model.Poll, error)
}

type pollArchive struct {
	client *redis.Client
	ttl    time.Duration
	limit  int64
}

// NewPollArchive creates a Redis-backed archive keeping at most limit polls
// for ttl
func NewPollArchive(client *redis.Client, ttl time.Duration, limit int) PollArchive {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if limit <= 0 {
		limit = 500
	}
	return &pollArchive{
		client: client,
		ttl:    ttl,
		limit:  int64(limit),
	}
}

const archiveIndexKey = "polls:archive"

func (c *pollArchive) key(pollID string) string {
	return fmt.Sprintf("poll:%s", pollID)
}

func (c *pollArchive) Archive(ctx context.Context, poll *model.Poll) error {
	data, err := json.Marshal(poll)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(poll.ID), data, c.ttl)
	pipe.LPush(ctx, archiveIndexKey, poll.ID)
	pipe.LTrim(ctx, archiveIndexKey, 0, c.limit-1)
	pipe.Expire(ctx, archiveIndexKey, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *pollArchive) Get(ctx context.Context, pollID string) (*model.Poll, error) {
	data, err := c.client.Get(ctx, c.key(pollID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var poll model.Poll
	if err := json.Unmarshal([]byte(data), &poll); err != nil {
		return nil, err
	}
	return &poll, nil
}

// Recent returns up to n archived polls, most recently closed first. Entries
// whose poll key already expired are skipped.
func (c *pollArchive) Recent(ctx context.Context, n int) ([]*model.Poll, error) {
	if n <= 0 {
		n = 20
	}
	ids, err := c.client.LRange(ctx, archiveIndexKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Poll{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	polls := make([]*model.Poll, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var poll model.Poll
		if err := json.Unmarshal([]byte(s), &poll); err != nil {
			return nil, err
		}
		polls = append(polls, &poll)
	}
	return polls, nil
}
