package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campfire/backend/internal/models"
)

// DailyPostLimit caps content creation per symbient per UTC calendar day.
const DailyPostLimit = 10

// ErrDailyLimitReached is returned when the day's budget is spent.
var ErrDailyLimitReached = errors.New("daily post limit reached")

// QuotaSymbientRepo is the minimal symbient repository interface for quota.
type QuotaSymbientRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Symbient, error)
	SetDailyPostCount(ctx context.Context, tx pgx.Tx, id uuid.UUID, count int, date time.Time) error
}

// QuotaService enforces the per-symbient daily creation quota. The counter
// row is locked (SELECT FOR UPDATE) so concurrent creations near the limit
// serialize instead of both reading count=9 and sneaking past.
type QuotaService struct {
	Symbients QuotaSymbientRepo
}

// NewQuotaService returns a new QuotaService.
func NewQuotaService(symbients QuotaSymbientRepo) *QuotaService {
	return &QuotaService{Symbients: symbients}
}

// ConsumeDailyPost locks the symbient row, lazily resets the counter when
// its date is not today (UTC), and either spends one unit or returns
// ErrDailyLimitReached. Call within the same transaction as the content
// insert so both commit or abort together.
func (s *QuotaService) ConsumeDailyPost(ctx context.Context, tx pgx.Tx, symbientID uuid.UUID, now time.Time) error {
	sym, err := s.Symbients.GetByIDForUpdate(ctx, tx, symbientID)
	if err != nil {
		return err
	}

	today := now.UTC().Truncate(24 * time.Hour)
	count := 0
	if sym.DailyPostDate != nil && sym.DailyPostDate.UTC().Truncate(24*time.Hour).Equal(today) {
		count = sym.DailyPostCount
	}
	if count >= DailyPostLimit {
		return ErrDailyLimitReached
	}
	return s.Symbients.SetDailyPostCount(ctx, tx, symbientID, count+1, today)
}

// SecondsUntilUTCMidnight is the Retry-After hint for a spent quota.
func SecondsUntilUTCMidnight(now time.Time) int {
	next := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return int(next.Sub(now.UTC()).Seconds()) + 1
}
