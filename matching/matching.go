// Package matching lists the cleaners a customer may pick for a recurring
// booking and applies the pick to the wizard.
package matching

import (
	"context"
	"errors"
	"sort"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/booking"
	"cleaning-booking-server/models"
	"cleaning-booking-server/repository"
)

type CleanerDirectory interface {
	ListActiveCleaners(ctx context.Context, tier models.RankTier) ([]models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

type Candidate struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	ProfilePhoto *string         `json:"profile_photo"`
	RankID       uint            `json:"rank_id"`
	RankName     string          `json:"rank_name"`
	Tier         models.RankTier `json:"tier"`
}

type RankGroup struct {
	RankID     uint        `json:"rank_id"`
	RankName   string      `json:"rank_name"`
	OrderIndex int         `json:"order_index"`
	Cleaners   []Candidate `json:"cleaners"`
}

// Result is what the cleaner-selection step shows. Deferred means no list
// is offered and the booking is matched elsewhere.
type Result struct {
	Deferred bool            `json:"deferred"`
	Tier     models.RankTier `json:"tier,omitempty"`
	Groups   []RankGroup     `json:"groups"`
}

type Service struct {
	cleaners CleanerDirectory
}

func NewService(cleaners CleanerDirectory) *Service {
	return &Service{cleaners: cleaners}
}

func tierOf(d booking.Draft) models.RankTier {
	if d.RankTier == "" {
		return models.TierRegular
	}
	return d.RankTier
}

// Candidates lists eligible cleaners for a recurring draft, grouped by
// rank. One-time drafts are deferred.
func (s *Service) Candidates(ctx context.Context, d booking.Draft) (*Result, error) {
	if d.BookingType != models.BookingRecurring {
		return &Result{Deferred: true, Groups: []RankGroup{}}, nil
	}
	tier := tierOf(d)
	cleaners, err := s.cleaners.ListActiveCleaners(ctx, tier)
	if err != nil {
		return nil, apperrors.RemoteRead("list cleaners", err)
	}
	return &Result{Tier: tier, Groups: GroupByRank(cleaners)}, nil
}

// GroupByRank groups cleaners by rank, orders the groups by the rank's
// order index and keeps the input order inside each group. Cleaners
// without a rank are left out.
func GroupByRank(cleaners []models.User) []RankGroup {
	groups := []RankGroup{}
	index := make(map[uint]int)
	for _, u := range cleaners {
		if u.Rank == nil {
			continue
		}
		i, ok := index[u.Rank.ID]
		if !ok {
			i = len(groups)
			index[u.Rank.ID] = i
			groups = append(groups, RankGroup{
				RankID:     u.Rank.ID,
				RankName:   u.Rank.Name,
				OrderIndex: u.Rank.OrderIndex,
			})
		}
		groups[i].Cleaners = append(groups[i].Cleaners, toCandidate(u))
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].OrderIndex < groups[b].OrderIndex
	})
	return groups
}

func toCandidate(u models.User) Candidate {
	c := Candidate{ID: u.ID, Name: u.Name, ProfilePhoto: u.ProfilePhoto}
	if u.Rank != nil {
		c.RankID = u.Rank.ID
		c.RankName = u.Rank.Name
		c.Tier = u.Rank.Tier
	}
	return c
}

// Detail looks a cleaner up without touching any draft.
func (s *Service) Detail(ctx context.Context, cleanerID uint) (*Candidate, error) {
	u, err := s.cleaners.GetByID(ctx, cleanerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("cleaner", err)
		}
		return nil, apperrors.RemoteRead("get cleaner", err)
	}
	if !u.IsMatchable() {
		return nil, apperrors.NotFound("cleaner", nil)
	}
	c := toCandidate(*u)
	return &c, nil
}

// Select records the cleaner on the draft and advances the wizard.
func (s *Service) Select(ctx context.Context, w *booking.Wizard, cleanerID uint) (booking.State, error) {
	if step := w.Current(); step != booking.StepCleaner {
		return w.State(), apperrors.Validation(string(step), "step")
	}
	d := w.Store().Snapshot()
	c, err := s.Detail(ctx, cleanerID)
	if err != nil {
		return w.State(), err
	}
	if c.Tier != tierOf(d) {
		return w.State(), apperrors.Validation(string(booking.StepCleaner), "cleaner_id")
	}
	return w.GoNext(ctx, booking.Patch{
		"cleaner_id":   cleanerID,
		"cleaner_type": string(c.Tier),
	})
}

// Skip advances past cleaner selection with no cleaner chosen.
func (s *Service) Skip(ctx context.Context, w *booking.Wizard) (booking.State, error) {
	if step := w.Current(); step != booking.StepCleaner {
		return w.State(), apperrors.Validation(string(step), "step")
	}
	return w.GoNext(ctx, booking.Patch{"cleaner_id": nil, "cleaner_type": ""})
}

// DeferredMatcher leaves one-time bookings unassigned for the back office.
type DeferredMatcher struct{}

func (DeferredMatcher) MatchCleanerForOneTimeBooking(ctx context.Context, d booking.Draft) (*uint, error) {
	return nil, nil
}
