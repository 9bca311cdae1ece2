// Package throttle ограничивает число неудачных попыток входа. Счетчики и
// блокировки хранятся в redis и живут ограниченное время.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/healthmap/healthmap-api/internal/config"
)

const (
	failUserPrefix    = "healthmap:fail:login:user:"
	failIPPrefix      = "healthmap:fail:login:ip:"
	blockedUserPrefix = "healthmap:blocked:login:user:"
	blockedIPPrefix   = "healthmap:blocked:login:ip:"
)

// KEYS[1]: счетчик, ARGV[1]: TTL в секундах.
const incrWithTTLScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

var incrWithTTL = redis.NewScript(incrWithTTLScript)

// Limits — параметры блокировки.
type Limits struct {
	MaxAttempts   int
	AttemptWindow time.Duration
	BlockDuration time.Duration
}

// LimitsFromConfig переносит настройки из конфига.
func LimitsFromConfig(cfg config.LoginThrottle) Limits {
	return Limits{
		MaxAttempts:   cfg.MaxAttempts,
		AttemptWindow: cfg.AttemptWindow,
		BlockDuration: cfg.BlockDuration,
	}
}

// LoginTracker считает неудачные входы по email и IP.
// Нулевой клиент отключает ограничение: все проверки проходят.
type LoginTracker struct {
	Db     *redis.Client
	limits Limits
}

// Connect подключается к redis. Пустой адрес возвращает выключенный трекер.
func Connect(ctx context.Context, cfg config.RedisConnection, limits Limits) (*LoginTracker, error) {
	const op = "throttle.Connect"
	if cfg.AddressRedis == "" {
		return &LoginTracker{limits: limits}, nil
	}

	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		Username:     cfg.RedisUser,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})
	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return New(db, limits), nil
}

// New оборачивает готовый клиент.
func New(db *redis.Client, limits Limits) *LoginTracker {
	return &LoginTracker{Db: db, limits: limits}
}

// IsBlocked сообщает, заблокирован ли вход для email или IP.
func (t *LoginTracker) IsBlocked(ctx context.Context, email, ip string) (bool, error) {
	const op = "throttle.IsBlocked"
	if t.Db == nil {
		return false, nil
	}

	keys := []string{blockedUserPrefix + email}
	if ip != "" {
		keys = append(keys, blockedIPPrefix+ip)
	}
	n, err := t.Db.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// RecordFailure учитывает неудачный вход. Когда счетчик по email достигает
// MaxAttempts, email и IP блокируются на BlockDuration. Возвращает true,
// если блокировка установлена.
func (t *LoginTracker) RecordFailure(ctx context.Context, email, ip string) (bool, error) {
	const op = "throttle.RecordFailure"
	if t.Db == nil {
		return false, nil
	}

	ttl := int(t.limits.AttemptWindow.Seconds())
	count, err := incrWithTTL.Run(ctx, t.Db, []string{failUserPrefix + email}, ttl).Int()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if ip != "" {
		if err := incrWithTTL.Run(ctx, t.Db, []string{failIPPrefix + ip}, ttl).Err(); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	if count < t.limits.MaxAttempts {
		return false, nil
	}

	pipe := t.Db.TxPipeline()
	pipe.Set(ctx, blockedUserPrefix+email, "1", t.limits.BlockDuration)
	if ip != "" {
		pipe.Set(ctx, blockedIPPrefix+ip, "1", t.limits.BlockDuration)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Clear сбрасывает счетчики после успешного входа.
func (t *LoginTracker) Clear(ctx context.Context, email, ip string) error {
	const op = "throttle.Clear"
	if t.Db == nil {
		return nil
	}

	keys := []string{failUserPrefix + email}
	if ip != "" {
		keys = append(keys, failIPPrefix+ip)
	}
	if err := t.Db.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Remaining возвращает число попыток до блокировки.
func (t *LoginTracker) Remaining(ctx context.Context, email string) (int, error) {
	const op = "throttle.Remaining"
	if t.Db == nil {
		return t.limits.MaxAttempts, nil
	}

	count, err := t.Db.Get(ctx, failUserPrefix+email).Int()
	if errors.Is(err, redis.Nil) {
		return t.limits.MaxAttempts, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return max(t.limits.MaxAttempts-count, 0), nil
}

// Close закрывает соединение с redis.
func (t *LoginTracker) Close() error {
	if t.Db == nil {
		return nil
	}
	return t.Db.Close()
}
