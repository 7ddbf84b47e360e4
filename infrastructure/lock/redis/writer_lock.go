// Package redis grants per-board writer leases with Redis keys that expire.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mindboard/application/ports"
	pkgerrors "mindboard/pkg/errors"
)

const defaultPrefix = "mindboard:lock:"

// acquireScript takes the lease when free and renews it when the caller
// already holds it
var acquireScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
if current then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// releaseScript deletes the lease only when the caller holds it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WriterLock implements ports.WriterLock
type WriterLock struct {
	client redis.Scripter
	prefix string
	logger *zap.Logger
}

var _ ports.WriterLock = (*WriterLock)(nil)

// NewClient connects to addr and checks the connection
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewWriterLock creates a lock using client. An empty prefix uses the
// default key namespace.
func NewWriterLock(client redis.Scripter, prefix string, logger *zap.Logger) *WriterLock {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriterLock{client: client, prefix: prefix, logger: logger}
}

func (l *WriterLock) key(boardID string) string {
	return l.prefix + boardID
}

// Acquire takes or renews the lease on boardID for owner
func (l *WriterLock) Acquire(ctx context.Context, boardID, owner string, ttl time.Duration) error {
	ok, err := acquireScript.Run(ctx, l.client, []string{l.key(boardID)}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if ok == 0 {
		l.logger.Debug("Writer lease held by another session",
			zap.String("boardId", boardID),
			zap.String("owner", owner),
		)
		return pkgerrors.NewConflictError("board is being edited elsewhere").
			WithCode(pkgerrors.CodeBoardLocked).
			WithDetail("boardId", boardID)
	}

	l.logger.Debug("Writer lease acquired",
		zap.String("boardId", boardID),
		zap.String("owner", owner),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// Release drops the lease if owner still holds it
func (l *WriterLock) Release(ctx context.Context, boardID, owner string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key(boardID)}, owner).Int()
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	if n == 0 {
		l.logger.Warn("Writer lease already released or taken over",
			zap.String("boardId", boardID),
			zap.String("owner", owner),
		)
	}
	return nil
}
