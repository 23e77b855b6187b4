package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence mirrors agent availability into redis with a TTL, keyed per tenant.
// It exists only for the presence REST endpoint; fan-out routing never reads
// it. A nil *Presence is a valid no-op mirror.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Presence{rdb: rdb, ttl: ttl}
}

func presenceKey(companyID, agentID string) string {
	return fmt.Sprintf("presence:%s:%s", companyID, agentID)
}

// MarkOnline refreshes the agent's status key. Called on agent join and on
// every agent-status heartbeat.
func (p *Presence) MarkOnline(ctx context.Context, companyID, agentID, status string) error {
	if p == nil {
		return nil
	}
	if status == "" {
		status = "online"
	}
	err := p.rdb.Set(ctx, presenceKey(companyID, agentID), status, p.ttl).Err()
	return errors.Wrap(err, "presence set")
}

func (p *Presence) MarkOffline(ctx context.Context, companyID, agentID string) error {
	if p == nil {
		return nil
	}
	err := p.rdb.Del(ctx, presenceKey(companyID, agentID)).Err()
	return errors.Wrap(err, "presence del")
}

// AgentsOf returns agentID -> status for every agent of the tenant whose
// presence key has not expired.
func (p *Presence) AgentsOf(ctx context.Context, companyID string) (map[string]string, error) {
	if p == nil {
		return nil, nil
	}
	prefix := fmt.Sprintf("presence:%s:", companyID)
	out := make(map[string]string)

	iter := p.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "presence scan")
	}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "presence mget")
	}
	for i, k := range keys {
		status, ok := vals[i].(string)
		if !ok {
			continue
		}
		out[strings.TrimPrefix(k, prefix)] = status
	}
	return out, nil
}
