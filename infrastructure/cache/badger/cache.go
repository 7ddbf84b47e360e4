// Package badger mirrors boards into an embedded BadgerDB so a board can be
// reopened when the remote store is unreachable.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"mindboard/application/ports"
	"mindboard/domain/board"
)

const keyPrefix = "board/"

// Cache implements ports.BoardCache
type Cache struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ ports.BoardCache = (*Cache)(nil)

// Open opens a cache rooted at dir. An empty dir keeps the cache in memory.
func Open(dir string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached board, if any
func (c *Cache) Get(ctx context.Context, boardID string) (board.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return board.Record{}, false, err
	}

	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + boardID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return board.Record{}, false, nil
	}
	if err != nil {
		return board.Record{}, false, fmt.Errorf("read cached board: %w", err)
	}

	var rec board.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt entry is a miss; the next save overwrites it
		c.logger.Warn("Discarding unreadable cached board",
			zap.String("boardId", boardID),
			zap.Error(err),
		)
		return board.Record{}, false, nil
	}
	return rec, true, nil
}

// Put stores the board, replacing any cached copy
func (c *Cache) Put(ctx context.Context, rec board.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cached board: %w", err)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.ID), raw)
	}); err != nil {
		return fmt.Errorf("write cached board: %w", err)
	}
	return nil
}

// Delete drops the cached board. Deleting a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, boardID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + boardID))
	})
}

// badgerLogger adapts zap to BadgerDB's Logger interface. Badger is chatty
// at info level, so info messages are logged at debug.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
