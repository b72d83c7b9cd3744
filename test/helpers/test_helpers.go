package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/pkg/pg"
	"github.com/rifadigital/raffle-gateway/pkg/redis"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB builds an in-memory sqlite database wrapped in the pg.DB
// read/write split used everywhere in the codebase. The raw gorm handle is
// returned as well so tests can manipulate rows directly.
func SetupTestDB(t *testing.T) (*pg.DB, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&repository.TicketEntity{}, &repository.TransactionEntity{})
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB, db
}

// SetupTestRedis starts a miniredis and connects an adapter to it. The
// connection name must be unique because the adapter registry is global.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

// SeedNumbers inserts the available pool [from, to] for a raffle.
func SeedNumbers(t *testing.T, db *pg.DB, raffleID, from, to int64) {
	repo := repository.NewTicketRepository(db)
	inserted, err := repo.Seed(context.Background(), raffleID, from, to)
	require.NoError(t, err)
	require.Equal(t, to-from+1, inserted)
}

// GetTicket reads one number straight from the store.
func GetTicket(t *testing.T, db *pg.DB, raffleID, number int64) *model.Ticket {
	repo := repository.NewTicketRepository(db)
	ticket, err := repo.Get(context.Background(), raffleID, number)
	require.NoError(t, err)
	return ticket
}

// ReserveNumber moves an available number to reserved for a buyer through the
// same conditional update production uses.
func ReserveNumber(t *testing.T, db *pg.DB, raffleID, number, buyerID int64) {
	repo := repository.NewTicketRepository(db)
	ticket, err := repo.Get(context.Background(), raffleID, number)
	require.NoError(t, err)

	_, err = repo.TryTransition(context.Background(), raffleID, number,
		model.TicketStatusAvailable, ticket.Version,
		model.TicketStatusReserved, &buyerID)
	require.NoError(t, err)
}

// BackdateReservation rewrites reserved_at so the reservation looks older
// than it is. Only the sweeper tests need this.
func BackdateReservation(t *testing.T, raw *gorm.DB, raffleID, number int64, age time.Duration) {
	reservedAt := time.Now().Add(-age)
	err := raw.Model(&repository.TicketEntity{}).
		Where("raffle_id = ? AND number = ?", raffleID, number).
		Update("reserved_at", &reservedAt).Error
	require.NoError(t, err)
}

// CountTransactions counts ledger rows for one payment id.
func CountTransactions(t *testing.T, raw *gorm.DB, paymentID string) int64 {
	var count int64
	err := raw.Model(&repository.TransactionEntity{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	require.NoError(t, err)
	return count
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
