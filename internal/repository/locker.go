package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/filelock"
)

const defaultLockTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// FileLocker takes non-blocking flock(2) locks on files under dir.
type FileLocker struct {
	dir string
}

// NewFileLocker constructs a locker whose lock files live in dir.
func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{dir: dir}
}

// Acquire locks key or returns ErrLocked when another writer holds it.
func (l *FileLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare lock dir: %w", err)
	}
	lock, err := filelock.TryAcquire(filepath.Join(l.dir, lockFileName(key)))
	if err != nil {
		return nil, err
	}
	return func() { _ = lock.Unlock() }, nil
}

func lockFileName(key string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(key)
}

// RedisLocker holds locks as expiring Redis keys so several gateway replicas
// can share one ledger.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker constructs the locker. A non-positive ttl uses 30s.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Acquire sets the key if absent. A held key yields ErrLocked.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			l.logger.Warn("redis lock release failed", zap.String("key", fullKey), zap.Error(err))
		}
	}, nil
}
