package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campfire/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// lockingSymbientRepo emulates row-level locking: GetByIDForUpdate takes the
// row lock and SetDailyPostCount releases it, the way a transaction holding
// SELECT FOR UPDATE serializes writers.
type lockingSymbientRepo struct {
	mu  sync.Mutex
	sym *models.Symbient
}

func (r *lockingSymbientRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, _ uuid.UUID) (*models.Symbient, error) {
	r.mu.Lock()
	cp := *r.sym
	return &cp, nil
}

func (r *lockingSymbientRepo) SetDailyPostCount(_ context.Context, _ pgx.Tx, _ uuid.UUID, count int, date time.Time) error {
	r.sym.DailyPostCount = count
	d := date
	r.sym.DailyPostDate = &d
	r.mu.Unlock()
	return nil
}

// release unlocks after a rejected consume, which never calls
// SetDailyPostCount.
func (r *lockingSymbientRepo) release() { r.mu.Unlock() }

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestConsumeDailyPost_FreshCounter(t *testing.T) {
	repo := &lockingSymbientRepo{sym: &models.Symbient{ID: uuid.New()}}
	svc := NewQuotaService(repo)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := svc.ConsumeDailyPost(context.Background(), noopTx{}, repo.sym.ID, now); err != nil {
		t.Fatalf("ConsumeDailyPost: %v", err)
	}
	if repo.sym.DailyPostCount != 1 {
		t.Errorf("count = %d, want 1", repo.sym.DailyPostCount)
	}
	if repo.sym.DailyPostDate == nil || !repo.sym.DailyPostDate.Equal(now.Truncate(24*time.Hour)) {
		t.Errorf("date = %v, want %v", repo.sym.DailyPostDate, now.Truncate(24*time.Hour))
	}
}

func TestConsumeDailyPost_RejectsAtLimit(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := &lockingSymbientRepo{sym: &models.Symbient{
		ID:             uuid.New(),
		DailyPostCount: DailyPostLimit,
		DailyPostDate:  &day,
	}}
	svc := NewQuotaService(repo)

	err := svc.ConsumeDailyPost(context.Background(), noopTx{}, repo.sym.ID, day.Add(10*time.Hour))
	if !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("err = %v, want ErrDailyLimitReached", err)
	}
	repo.release()
	if repo.sym.DailyPostCount != DailyPostLimit {
		t.Errorf("count changed on rejection: %d", repo.sym.DailyPostCount)
	}
}

func TestConsumeDailyPost_LazyResetOnNewDay(t *testing.T) {
	yesterday := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	repo := &lockingSymbientRepo{sym: &models.Symbient{
		ID:             uuid.New(),
		DailyPostCount: DailyPostLimit,
		DailyPostDate:  &yesterday,
	}}
	svc := NewQuotaService(repo)

	now := time.Date(2025, 6, 1, 0, 0, 1, 0, time.UTC)
	if err := svc.ConsumeDailyPost(context.Background(), noopTx{}, repo.sym.ID, now); err != nil {
		t.Fatalf("ConsumeDailyPost after day rollover: %v", err)
	}
	if repo.sym.DailyPostCount != 1 {
		t.Errorf("count = %d, want 1 after lazy reset", repo.sym.DailyPostCount)
	}
}

// TestConsumeDailyPost_Concurrent drives 25 simultaneous consumers at one
// symbient: exactly DailyPostLimit must succeed regardless of interleaving.
func TestConsumeDailyPost_Concurrent(t *testing.T) {
	repo := &lockingSymbientRepo{sym: &models.Symbient{ID: uuid.New()}}
	svc := NewQuotaService(repo)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	const attempts = 25
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.ConsumeDailyPost(context.Background(), noopTx{}, repo.sym.ID, now)
			if err != nil {
				repo.release()
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDailyLimitReached):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != DailyPostLimit {
		t.Errorf("succeeded = %d, want %d", succeeded, DailyPostLimit)
	}
	if rejected != attempts-DailyPostLimit {
		t.Errorf("rejected = %d, want %d", rejected, attempts-DailyPostLimit)
	}
	if repo.sym.DailyPostCount != DailyPostLimit {
		t.Errorf("final count = %d, want %d", repo.sym.DailyPostCount, DailyPostLimit)
	}
}

func TestSecondsUntilUTCMidnight(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	got := SecondsUntilUTCMidnight(now)
	if got != 61 {
		t.Errorf("SecondsUntilUTCMidnight = %d, want 61", got)
	}
}
