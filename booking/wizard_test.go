package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
)

type MockReservationCreator struct {
	mock.Mock
}

func (m *MockReservationCreator) Create(ctx context.Context, reservation *models.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

type MockPaymentChecker struct {
	mock.Mock
}

func (m *MockPaymentChecker) HasPaymentMethod(ctx context.Context, customerID uint) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

var booker = Booker{ID: 7, Name: "Lee Booker", Phone: "01099998888"}

func seoul(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}

// walkTo advances a fresh general-service wizard until it reaches step.
func walkTo(t *testing.T, w *Wizard, step StepID) {
	t.Helper()
	ctx := context.Background()
	patches := map[StepID]Patch{
		StepService:  {"service_category": "general"},
		StepAddress:  {"address": "addr-1", "area": 20},
		StepDateTime: {"date": "2025-06-01", "time": "10:00"},
		StepResident: {"is_resident": true, "resident_name": "Kim", "resident_phone": 1012345678},
	}
	for w.Current() != step {
		_, err := w.GoNext(ctx, patches[w.Current()])
		require.NoError(t, err, "advancing from %s", w.Current())
	}
}

func TestDeriveStepSequence_AreaStepInsertion(t *testing.T) {
	cases := []struct {
		category models.ServiceCategory
		areaStep StepID
	}{
		{models.CategoryGeneral, ""},
		{models.CategoryKitchen, StepKitchen},
		{models.CategoryBathroom, StepBathroom},
		{models.CategoryFridge, StepFridge},
	}
	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			seq := DeriveStepSequence(Draft{ServiceCategory: tc.category})
			assert.Equal(t, StepService, seq[0])
			assert.Equal(t, StepComplete, seq[len(seq)-1])
			if tc.areaStep == "" {
				assert.Equal(t, StepAddress, seq[1])
				assert.Equal(t, 7, TotalSteps(seq))
				return
			}
			assert.Equal(t, tc.areaStep, seq[1])
			assert.Equal(t, StepAddress, seq[2])
			assert.Equal(t, 8, TotalSteps(seq))
		})
	}
}

func TestDeriveStepSequence_AreaOnlyEndsAfterAddress(t *testing.T) {
	seq := DeriveStepSequence(Draft{ServiceCategory: models.CategoryKitchen, AreaOnly: true})
	assert.Equal(t, []StepID{StepService, StepKitchen, StepAddress, StepComplete}, seq)
}

func TestProgressFor(t *testing.T) {
	seq := DeriveStepSequence(Draft{ServiceCategory: models.CategoryBathroom})

	p := ProgressFor(seq, StepService)
	assert.Equal(t, Progress{Current: 1, Total: 8}, p)

	p = ProgressFor(seq, StepBathroom)
	assert.Equal(t, 2, p.Current)

	// Steps of one screen share a number.
	assert.Equal(t, ProgressFor(seq, StepReminder).Current, ProgressFor(seq, StepCancellation).Current)

	p = ProgressFor(seq, StepComplete)
	assert.Equal(t, p.Total, p.Current)
	assert.True(t, p.Done)

	p = ProgressFor(seq, StepConfirmation)
	assert.Equal(t, p.Total-1, p.Current)
	assert.False(t, p.Done)
}

func TestGoNext_DateWithoutTimeIsRejected(t *testing.T) {
	w := NewWizard(booker, new(MockReservationCreator), Options{})
	walkTo(t, w, StepDateTime)
	before := w.Progress()

	_, err := w.GoNext(context.Background(), Patch{"date": "2025-06-01"})

	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Equal(t, "datetime", appErr.Step)
	assert.Contains(t, appErr.Fields, "time")
	assert.Equal(t, StepDateTime, w.Current())
	assert.Equal(t, before, w.Progress())
	// The patch itself is kept.
	assert.Equal(t, "2025-06-01", w.Store().Snapshot().Date)
}

func TestGoNext_UnknownKeyIsValidationError(t *testing.T) {
	w := NewWizard(booker, new(MockReservationCreator), Options{})

	_, err := w.GoNext(context.Background(), Patch{"service_category": "general", "colour": "blue"})

	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, "service", appErr.Step)
	assert.Equal(t, []string{"colour"}, appErr.Fields)
	assert.Equal(t, StepService, w.Current())
	assert.True(t, w.Store().Snapshot().IsEmpty())
}

func TestGoNext_CategoryChangeRecomputesSequence(t *testing.T) {
	w := NewWizard(booker, new(MockReservationCreator), Options{})
	ctx := context.Background()

	_, err := w.GoNext(ctx, Patch{"service_category": "fridge"})
	require.NoError(t, err)
	assert.Equal(t, StepFridge, w.Current())

	w.GoBack()
	assert.Equal(t, StepService, w.Current())

	_, err = w.GoNext(ctx, Patch{"service_category": "general"})
	require.NoError(t, err)
	assert.Equal(t, StepAddress, w.Current())
	assert.Equal(t, 7, w.Progress().Total)
}

func TestGoBack_KeepsDraftAndSkipsValidation(t *testing.T) {
	w := NewWizard(booker, new(MockReservationCreator), Options{})
	walkTo(t, w, StepDateTime)

	state := w.GoBack()

	assert.Equal(t, StepAddress, state.Step)
	assert.Equal(t, "addr-1", state.Draft.Address)

	w.GoBack()
	w.GoBack()
	assert.Equal(t, StepService, w.GoBack().Step)
}

func TestGoTo_OnlyReachedSteps(t *testing.T) {
	w := NewWizard(booker, new(MockReservationCreator), Options{})
	walkTo(t, w, StepResident)

	_, err := w.GoTo(StepPayment)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, StepResident, w.Current())

	state, err := w.GoTo(StepAddress)
	require.NoError(t, err)
	assert.Equal(t, StepAddress, state.Step)

	_, err = w.GoTo(StepKitchen)
	assert.Error(t, err)
}

func TestAreaOnlyFlow_FinishesWithoutInsert(t *testing.T) {
	creator := new(MockReservationCreator)
	w := NewWizard(booker, creator, Options{})
	ctx := context.Background()

	_, err := w.GoNext(ctx, Patch{"service_category": "kitchen", "area_only": true})
	require.NoError(t, err)
	_, err = w.GoNext(ctx, nil)
	require.NoError(t, err)
	state, err := w.GoNext(ctx, Patch{"address": "addr-9", "area": 12})
	require.NoError(t, err)

	assert.Equal(t, StepComplete, state.Step)
	assert.True(t, state.Progress.Done)
	assert.True(t, state.Draft.IsEmpty())
	creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentStep_RequiresPaymentMethod(t *testing.T) {
	payments := new(MockPaymentChecker)
	payments.On("HasPaymentMethod", mock.Anything, booker.ID).Return(false, nil).Once()
	payments.On("HasPaymentMethod", mock.Anything, booker.ID).Return(true, nil).Once()
	w := NewWizard(booker, new(MockReservationCreator), Options{Payments: payments})
	walkTo(t, w, StepPayment)

	_, err := w.GoNext(context.Background(), nil)
	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, []string{"payment_method"}, appErr.Fields)
	assert.Equal(t, StepPayment, w.Current())

	_, err = w.GoNext(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StepConfirmation, w.Current())
	payments.AssertExpectations(t)
}

func TestConfirm_CommitsExactlyOnce(t *testing.T) {
	creator := new(MockReservationCreator)
	creator.On("Create", mock.Anything, mock.AnythingOfType("*models.Reservation")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Reservation).ID = 101
		}).
		Return(nil).Once()

	var hooked *models.Reservation
	hook := func(ctx context.Context, r *models.Reservation) { hooked = r }
	w := NewWizard(booker, creator, Options{Location: seoul(t), Hooks: []AfterCommitHook{hook}})
	walkTo(t, w, StepConfirmation)

	state, err := w.Confirm(context.Background())

	require.NoError(t, err)
	creator.AssertNumberOfCalls(t, "Create", 1)
	assert.Equal(t, StepComplete, state.Step)
	assert.True(t, state.Progress.Done)
	assert.True(t, w.Store().Snapshot().IsEmpty())

	r := creator.Calls[0].Arguments.Get(1).(*models.Reservation)
	assert.Equal(t, booker.ID, r.UserID)
	assert.Equal(t, models.CategoryGeneral, r.ServiceCategory)
	assert.Equal(t, "addr-1", r.Address)
	assert.Equal(t, 20.0, r.AreaSize)
	assert.Equal(t, []string{"2025-06-01"}, []string(r.Dates))
	assert.Equal(t, "10:00", r.Time)
	assert.True(t, r.IsResident)
	assert.Equal(t, "Kim", r.ResidentName)
	assert.Equal(t, "1012345678", r.ResidentPhone)
	assert.True(t, time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC).Equal(r.ScheduledAt))
	assert.Equal(t, models.ReservationPending, r.Status)
	assert.Greater(t, r.Amount, 0.0)
	assert.False(t, r.ReminderEnabled, "reminders are opt-in")

	require.NotNil(t, hooked)
	assert.Equal(t, uint(101), hooked.ID)

	_, err = w.GoNext(context.Background(), nil)
	assert.ErrorIs(t, err, ErrWizardComplete)
}

func TestConfirm_CarriesReminderOptIn(t *testing.T) {
	creator := new(MockReservationCreator)
	creator.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	w := NewWizard(booker, creator, Options{})
	walkTo(t, w, StepReminder)

	_, err := w.GoNext(context.Background(), Patch{"reminder_enabled": true})
	require.NoError(t, err)
	walkTo(t, w, StepConfirmation)
	_, err = w.Confirm(context.Background())

	require.NoError(t, err)
	r := creator.Calls[0].Arguments.Get(1).(*models.Reservation)
	assert.True(t, r.ReminderEnabled)
}

func TestGoNext_ResidentSameAsBookerFillsName(t *testing.T) {
	w := NewWizard(booker, new(MockReservationCreator), Options{})
	walkTo(t, w, StepResident)

	state, err := w.GoNext(context.Background(), Patch{"is_resident": true, "same_as_booker": true})

	require.NoError(t, err)
	assert.Equal(t, StepCleaner, state.Step)
	d := w.Store().Snapshot()
	assert.Equal(t, "Lee Booker", d.ResidentName)
	assert.Equal(t, PhoneNumber("01099998888"), d.ResidentPhone)
}

func TestGoNext_ResidentWithoutNameIsRejected(t *testing.T) {
	w := NewWizard(Booker{}, new(MockReservationCreator), Options{})
	walkTo(t, w, StepResident)

	_, err := w.GoNext(context.Background(), Patch{"is_resident": true, "same_as_booker": true})

	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "resident_name")
	assert.Equal(t, StepResident, w.Current())
}

func TestConfirm_FailureKeepsDraftAndStep(t *testing.T) {
	creator := new(MockReservationCreator)
	creator.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
	creator.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	w := NewWizard(booker, creator, Options{})
	walkTo(t, w, StepConfirmation)

	_, err := w.Confirm(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemoteWrite))
	assert.Equal(t, StepConfirmation, w.Current())
	assert.Equal(t, "Kim", w.Store().Snapshot().ResidentName)

	state, err := w.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StepComplete, state.Step)
	creator.AssertNumberOfCalls(t, "Create", 2)
}

func TestConfirm_FullRecordValidation(t *testing.T) {
	creator := new(MockReservationCreator)
	w := NewWizard(booker, creator, Options{})
	walkTo(t, w, StepConfirmation)
	require.NoError(t, w.Store().SetDraft(Patch{"time": ""}))

	_, err := w.Confirm(context.Background())

	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, "confirmation", appErr.Step)
	assert.Equal(t, []string{"time"}, appErr.Fields)
	creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfirm_OnlyAtConfirmation(t *testing.T) {
	w := NewWizard(booker, new(MockReservationCreator), Options{})

	_, err := w.Confirm(context.Background())

	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, StepService, w.Current())
}

type stubMatcher struct{ id *uint }

func (s stubMatcher) MatchCleanerForOneTimeBooking(ctx context.Context, d Draft) (*uint, error) {
	return s.id, nil
}

func TestCleanerStep_OneTimeMatcherAssignsCleaner(t *testing.T) {
	id := uint(55)
	w := NewWizard(booker, new(MockReservationCreator), Options{Matcher: stubMatcher{id: &id}})
	walkTo(t, w, StepCleaner)

	_, err := w.GoNext(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, StepReminder, w.Current())
	require.NotNil(t, w.Store().Snapshot().CleanerID)
	assert.Equal(t, id, *w.Store().Snapshot().CleanerID)
}
