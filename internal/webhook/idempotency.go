package webhook

import (
	"errors"
	"fmt"
	"time"

	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/redis"
)

var (
	ErrAlreadySettled    = errors.New("payment already settled")
	ErrDeliveryLocked    = errors.New("payment is being processed by another delivery")
	ErrLockAcquireFailed = errors.New("failed to acquire settlement lock")
)

type GuardConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LockTTL:      30 * time.Second,
		ProcessedTTL: 24 * time.Hour,
	}
}

// Guard is the Redis side of webhook idempotency. It keeps a short-lived
// lock so concurrent duplicate deliveries of the same payment do not race
// through settlement, and a processed marker so replays are answered from
// cache instead of refetching the payment. The database unique index on
// payment_id remains the authoritative guarantee; this layer just keeps
// duplicates cheap.
type Guard struct {
	redis  redis.RedisAdapter
	config GuardConfig
}

func NewGuard(redisAdapter redis.RedisAdapter, config GuardConfig) *Guard {
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultGuardConfig().LockTTL
	}
	if config.ProcessedTTL <= 0 {
		config.ProcessedTTL = DefaultGuardConfig().ProcessedTTL
	}
	return &Guard{
		redis:  redisAdapter,
		config: config,
	}
}

// Acquire takes the per-payment settlement lock. ErrAlreadySettled means a
// previous delivery completed; ErrDeliveryLocked means one is in flight.
func (g *Guard) Acquire(paymentID string) error {
	exists, err := g.redis.Exist(processedKey(paymentID))
	if err != nil {
		// a broken marker check must not block settlement, the unique
		// index catches duplicates anyway
		logger.Warn("processed marker check failed", "payment_id", paymentID, "error", err)
	} else if exists > 0 {
		return ErrAlreadySettled
	}

	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	acquired, err := g.redis.SetNX(lockKey(paymentID), lockValue, g.config.LockTTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return ErrDeliveryLocked
	}

	return nil
}

// MarkSettled records the long-term processed marker and drops the lock.
func (g *Guard) MarkSettled(paymentID string) {
	if err := g.redis.Set(processedKey(paymentID), []byte("1"), g.config.ProcessedTTL); err != nil {
		logger.Warn("failed to mark payment as settled", "payment_id", paymentID, "error", err)
	}
	g.Release(paymentID)
}

// Release drops the lock without marking, so a later delivery can retry.
func (g *Guard) Release(paymentID string) {
	if err := g.redis.Del(lockKey(paymentID)); err != nil {
		logger.Warn("failed to release settlement lock", "payment_id", paymentID, "error", err)
	}
}

func (g *Guard) IsSettled(paymentID string) (bool, error) {
	exists, err := g.redis.Exist(processedKey(paymentID))
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func processedKey(paymentID string) string {
	return "webhook:settled:" + paymentID
}

func lockKey(paymentID string) string {
	return "webhook:lock:" + paymentID
}
