package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/booking"
	"cleaning-booking-server/models"
	"cleaning-booking-server/repository"
)

type MockCleanerDirectory struct {
	mock.Mock
}

func (m *MockCleanerDirectory) ListActiveCleaners(ctx context.Context, tier models.RankTier) ([]models.User, error) {
	args := m.Called(ctx, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockCleanerDirectory) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

var (
	rose      = &models.Rank{ID: 3, Name: "Rose", Tier: models.TierRegular, OrderIndex: 3}
	plum      = &models.Rank{ID: 1, Name: "Plum", Tier: models.TierRegular, OrderIndex: 1}
	forsythia = &models.Rank{ID: 2, Name: "Forsythia", Tier: models.TierRegular, OrderIndex: 2}
	diamond   = &models.Rank{ID: 9, Name: "Diamond", Tier: models.TierLuxury, OrderIndex: 1}
)

func cleaner(id uint, name string, rank *models.Rank) models.User {
	return models.User{
		ID: id, Name: name, Type: models.RoleCleaner, Rank: rank, RankID: &rank.ID,
		Status: models.PartnerApproved, IsActive: true,
	}
}

func TestGroupByRank_OrdersGroupsKeepsInGroupOrder(t *testing.T) {
	groups := GroupByRank([]models.User{
		cleaner(10, "Zed", rose),
		cleaner(11, "Amy", plum),
		cleaner(12, "Bo", rose),
		cleaner(13, "Cy", forsythia),
		cleaner(14, "Ada", plum),
		{ID: 15, Name: "Unranked"},
	})

	require.Len(t, groups, 3)
	assert.Equal(t, []string{"Plum", "Forsythia", "Rose"}, []string{groups[0].RankName, groups[1].RankName, groups[2].RankName})
	assert.Equal(t, uint(11), groups[0].Cleaners[0].ID)
	assert.Equal(t, uint(14), groups[0].Cleaners[1].ID)
	assert.Equal(t, uint(10), groups[2].Cleaners[0].ID)
	assert.Equal(t, uint(12), groups[2].Cleaners[1].ID)
}

func TestCandidates_OneTimeIsDeferred(t *testing.T) {
	dir := new(MockCleanerDirectory)
	svc := NewService(dir)

	res, err := svc.Candidates(context.Background(), booking.Draft{BookingType: models.BookingOneTime})

	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.Empty(t, res.Groups)
	dir.AssertNotCalled(t, "ListActiveCleaners", mock.Anything, mock.Anything)
}

func TestCandidates_RecurringUsesDraftTier(t *testing.T) {
	dir := new(MockCleanerDirectory)
	dir.On("ListActiveCleaners", mock.Anything, models.TierLuxury).
		Return([]models.User{cleaner(20, "Lux", diamond)}, nil)
	svc := NewService(dir)

	res, err := svc.Candidates(context.Background(), booking.Draft{
		BookingType: models.BookingRecurring,
		RankTier:    models.TierLuxury,
	})

	require.NoError(t, err)
	assert.False(t, res.Deferred)
	assert.Equal(t, models.TierLuxury, res.Tier)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Diamond", res.Groups[0].RankName)
}

func recurringWizardAtCleanerStep(t *testing.T) *booking.Wizard {
	t.Helper()
	w := booking.NewWizard(booking.Booker{ID: 1}, nil, booking.Options{})
	ctx := context.Background()
	for _, p := range []booking.Patch{
		{"service_category": "general", "booking_type": "recurring"},
		{"address": "addr-1", "area": 18},
		{"dates": []string{"2025-06-02"}, "time": "09:00", "recurring_days": []string{"mon"}},
		{"is_resident": false},
	} {
		_, err := w.GoNext(ctx, p)
		require.NoError(t, err)
	}
	require.Equal(t, booking.StepCleaner, w.Current())
	return w
}

func TestSelect_SetsCleanerAndAdvances(t *testing.T) {
	dir := new(MockCleanerDirectory)
	picked := cleaner(31, "Mina", plum)
	dir.On("GetByID", mock.Anything, uint(31)).Return(&picked, nil)
	svc := NewService(dir)
	w := recurringWizardAtCleanerStep(t)

	state, err := svc.Select(context.Background(), w, 31)

	require.NoError(t, err)
	assert.Equal(t, booking.StepReminder, state.Step)
	require.NotNil(t, state.Draft.CleanerID)
	assert.Equal(t, uint(31), *state.Draft.CleanerID)
	assert.Equal(t, "regular", state.Draft.CleanerType)
}

func TestSelect_RejectsOtherTier(t *testing.T) {
	dir := new(MockCleanerDirectory)
	lux := cleaner(32, "Lux", diamond)
	dir.On("GetByID", mock.Anything, uint(32)).Return(&lux, nil)
	svc := NewService(dir)
	w := recurringWizardAtCleanerStep(t)

	_, err := svc.Select(context.Background(), w, 32)

	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, booking.StepCleaner, w.Current())
}

func TestSkip_LeavesCleanerEmpty(t *testing.T) {
	svc := NewService(new(MockCleanerDirectory))
	w := recurringWizardAtCleanerStep(t)

	state, err := svc.Skip(context.Background(), w)

	require.NoError(t, err)
	assert.Equal(t, booking.StepReminder, state.Step)
	assert.Nil(t, state.Draft.CleanerID)
}

func TestDetail_DoesNotTouchWizard(t *testing.T) {
	dir := new(MockCleanerDirectory)
	pending := cleaner(40, "New", rose)
	pending.Status = models.PartnerPending
	dir.On("GetByID", mock.Anything, uint(40)).Return(&pending, nil)
	dir.On("GetByID", mock.Anything, uint(41)).Return(nil, repository.ErrNotFound)
	svc := NewService(dir)

	_, err := svc.Detail(context.Background(), 40)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	_, err = svc.Detail(context.Background(), 41)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestDeferredMatcher(t *testing.T) {
	id, err := DeferredMatcher{}.MatchCleanerForOneTimeBooking(context.Background(), booking.Draft{})
	assert.NoError(t, err)
	assert.Nil(t, id)
}
