package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLockKey — ключ pg_advisory_lock для лидера планировщика.
const DefaultLockKey int64 = 0x5354_4550 // "STEP"

// Locker — лидерство между экземплярами планировщика.
type Locker interface {
	// TryLock пытается стать лидером. Повторный вызов лидером возвращает true.
	TryLock(ctx context.Context) (bool, error)
	// Unlock отпускает лидерство.
	Unlock(ctx context.Context) error
}

// AdvisoryLock — лидерство через pg_try_advisory_lock.
//
// Advisory lock принадлежит сессии, поэтому держится выделенное
// соединение из пула, пока экземпляр остаётся лидером.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewAdvisoryLock создаёт AdvisoryLock.
func NewAdvisoryLock(pool *pgxpool.Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, key: key}
}

// TryLock реализует Locker.
func (l *AdvisoryLock) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		// Проверяем, что сессия с замком жива.
		if err := l.conn.Ping(ctx); err == nil {
			return true, nil
		}
		l.conn.Release()
		l.conn = nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Unlock реализует Locker.
func (l *AdvisoryLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()

	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}

// Loop вызывает Tick каждые interval, пока экземпляр — лидер.
// Возвращается при отмене ctx, отпуская лидерство.
func (s *Scheduler) Loop(ctx context.Context, interval time.Duration, locker Locker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := locker.Unlock(unlockCtx); err != nil {
			s.logger.Warn("failed to release leadership", "error", err)
		}
	}()

	var leader bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ok, err := locker.TryLock(ctx)
		if err != nil {
			s.logger.Warn("leader election failed", "error", err)
			continue
		}
		if ok != leader {
			s.logger.Info("leadership changed", "leader", ok)
			leader = ok
		}
		if !leader {
			continue
		}

		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	}
}
