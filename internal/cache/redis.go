// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the journal appends to.
const DefaultQueueName = "wizard_actions"

// DefaultMaxLen bounds the length of the journal list.
const DefaultMaxLen = 10000

const (
	defaultBuffer = 256
	pushTimeout   = 2 * time.Second
)

// Options configures the Redis connection and journal queue.
type Options struct {
	Addr     string
	DB       int
	Password string
	Queue    string // list name, DefaultQueueName if empty
	MaxLen   int64  // list is trimmed to the newest MaxLen entries; 0 disables trimming
	Buffer   int    // pending records before Publish starts dropping
}

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// listPusher is the part of *redis.Client the journal needs.
type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisJournal appends JSON records to a Redis list from a background worker.
// Publish never waits on the network; when the buffer is full the record is dropped.
type RedisJournal struct {
	client listPusher
	queue  string
	maxLen int64
	logger logrus.FieldLogger

	records chan ActionRecord
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewRedisJournal starts the worker. Call Close to flush and stop it.
func NewRedisJournal(client listPusher, opts Options, logger logrus.FieldLogger) *RedisJournal {
	if opts.Queue == "" {
		opts.Queue = DefaultQueueName
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	j := &RedisJournal{
		client:  client,
		queue:   opts.Queue,
		maxLen:  opts.MaxLen,
		logger:  logger.WithField("queue", opts.Queue),
		records: make(chan ActionRecord, opts.Buffer),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Publish enqueues a record for the worker.
func (j *RedisJournal) Publish(rec ActionRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.records <- rec:
	default:
		j.logger.WithFields(logrus.Fields{
			"match_id":     rec.MatchID,
			"action_index": rec.ActionIndex,
		}).Warn("journal buffer full, dropping action")
	}
}

// Close stops accepting records and waits until the queued ones are pushed.
func (j *RedisJournal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return
	}
	j.closed = true
	close(j.records)
	j.mu.Unlock()
	<-j.done
}

func (j *RedisJournal) run() {
	defer close(j.done)
	for rec := range j.records {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		if err := j.push(ctx, rec); err != nil {
			j.logger.WithError(err).WithField("action_index", rec.ActionIndex).Error("failed to publish match action")
		}
		cancel()
	}
}

// push serializes the record to JSON and appends it to the list.
func (j *RedisJournal) push(ctx context.Context, rec ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := j.client.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	if j.maxLen > 0 {
		if err := j.client.LTrim(ctx, j.queue, -j.maxLen, -1).Err(); err != nil {
			return fmt.Errorf("failed to LTrim Redis list '%s': %w", j.queue, err)
		}
	}
	return nil
}
