// Package study serves a learner's review items: recording reviews and selecting what to study next.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/studysync/internal/apperr"
	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/internal/database"
	sr "github.com/example/studysync/internal/spaced_repetition"
	"github.com/example/studysync/pkg/models"
)

// ItemStore persists review items
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.ReviewItem) error
	Get(ctx context.Context, itemID string) (*models.ReviewItem, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ReviewItem, error)
	ListOwners(ctx context.Context) ([]string, error)
	UpdateSchedule(ctx context.Context, itemID string, state models.SchedulingState, at time.Time) error
}

var _ ItemStore = (*database.ReviewItemRepository)(nil)

// Service applies SM-2 reviews to stored items
type Service struct {
	store  ItemStore
	sm2    *sr.SM2
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a study service. A nil clock uses the system clock.
func NewService(store ItemStore, c clock.Clock, logger *slog.Logger) *Service {
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, sm2: sr.NewSM2(), clock: c, logger: logger}
}

// AddItem starts scheduling a new item, due immediately. An existing item of the
// same owner is returned unchanged with created=false.
func (s *Service) AddItem(ctx context.Context, ownerID, itemID string, kind models.ItemKind) (item *models.ReviewItem, created bool, err error) {
	ownerID, itemID = strings.TrimSpace(ownerID), strings.TrimSpace(itemID)
	if ownerID == "" || itemID == "" {
		return nil, false, apperr.Invalid("owner id and item id are required")
	}
	switch kind {
	case "":
		kind = models.ItemKindFlashcard
	case models.ItemKindFlashcard, models.ItemKindQuestion:
	default:
		return nil, false, apperr.Invalid("unknown item kind %q", kind)
	}

	now := s.clock.Now()
	item = &models.ReviewItem{
		ItemID:          itemID,
		OwnerID:         ownerID,
		ItemKind:        kind,
		SchedulingState: models.NewSchedulingState(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.store.CreateItem(ctx, item)
	if errors.Is(err, database.ErrDuplicate) {
		existing, err := s.store.Get(ctx, itemID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load existing item: %w", err)
		}
		if existing.OwnerID != ownerID {
			return nil, false, apperr.Invalid("item id %q is already taken", itemID)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create item: %w", err)
	}
	return item, true, nil
}

// Review records a quality rating for the owner's item and returns the rescheduled item.
// Items of other owners are reported as not found.
func (s *Service) Review(ctx context.Context, ownerID, itemID string, quality int) (*models.ReviewItem, error) {
	item, err := s.ownedItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	item.SchedulingState = s.sm2.Review(item.SchedulingState, quality, now)
	item.UpdatedAt = now
	if err := s.store.UpdateSchedule(ctx, item.ItemID, item.SchedulingState, now); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	s.logger.DebugContext(ctx, "item reviewed",
		"owner_id", ownerID, "item_id", itemID, "quality", quality,
		"interval_days", item.IntervalDays, "easiness_factor", item.EasinessFactor)
	return item, nil
}

func (s *Service) ownedItem(ctx context.Context, ownerID, itemID string) (*models.ReviewItem, error) {
	item, err := s.store.Get(ctx, itemID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item.OwnerID != ownerID {
		return nil, apperr.ErrItemNotFound
	}
	return item, nil
}

func (s *Service) items(ctx context.Context, ownerID string) ([]models.ReviewItem, error) {
	items, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// DueItems returns the owner's items that are due now
func (s *Service) DueItems(ctx context.Context, ownerID string) ([]models.ReviewItem, error) {
	items, err := s.items(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return sr.DueItems(items, s.clock.Now()), nil
}

// Stats summarizes the owner's items
func (s *Service) Stats(ctx context.Context, ownerID string) (models.StudyStats, error) {
	items, err := s.items(ctx, ownerID)
	if err != nil {
		return models.StudyStats{}, err
	}
	return s.sm2.Stats(items, s.clock.Now()), nil
}

// NextItems returns up to limit due items in study order
func (s *Service) NextItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error) {
	items, err := s.items(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return sr.NextItems(items, s.clock.Now(), limit), nil
}

// DueCounts returns, for every owner with due items, how many are due
func (s *Service) DueCounts(ctx context.Context) (map[string]int, error) {
	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	now := s.clock.Now()
	counts := make(map[string]int)
	for _, owner := range owners {
		items, err := s.items(ctx, owner)
		if err != nil {
			return nil, err
		}
		if n := len(sr.DueItems(items, now)); n > 0 {
			counts[owner] = n
		}
	}
	return counts, nil
}
