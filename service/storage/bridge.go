package storage

import (
	"context"
	"time"

	"chatrelay/logger"
	"chatrelay/tools/safe"
)

// Bridge is the best-effort write path from a live chat message to the
// durable store. Writes never block or gate live delivery; a failed write is
// logged and forgotten.
type Bridge struct {
	store   MessageStore
	timeout time.Duration
}

func NewBridge(store MessageStore, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Bridge{store: store, timeout: timeout}
}

// PersistAsync queues a durable write and returns immediately. There is
// intentionally no way for a caller to await or observe the outcome.
func (b *Bridge) PersistAsync(rec *MessageRecord) {
	if b == nil || b.store == nil || rec == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.store.Save(ctx, rec); err != nil {
			logger.Errorf("[bridge] save message conv=%s sender=%s: %v",
				rec.ConversationID, rec.SenderType, err)
		}
	})
}
