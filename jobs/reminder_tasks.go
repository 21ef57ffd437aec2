package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cleaning-booking-server/models"
	"cleaning-booking-server/notifications"
	"cleaning-booking-server/repository"
)

const TypeReservationReminder = "reservation:reminder"

const (
	reminderDateLayout = "2006-01-02"
	reminderTimeLayout = "15:04"
)

// ReminderPayload identifies one visit of a reservation.
type ReminderPayload struct {
	ReservationID uint      `json:"reservation_id"`
	VisitAt       time.Time `json:"visit_at"`
}

// TaskEnqueuer is the part of *asynq.Client the scheduler needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ReservationReader interface {
	GetByID(ctx context.Context, id uint) (*models.Reservation, error)
}

type Notifier interface {
	Create(ctx context.Context, in notifications.NewNotification) (*models.Notification, error)
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// ReminderScheduler enqueues one reminder per visit of a new reservation.
type ReminderScheduler struct {
	client TaskEnqueuer
	lead   time.Duration
	loc    *time.Location
	now    func() time.Time
}

func NewReminderScheduler(client TaskEnqueuer, lead time.Duration, loc *time.Location) *ReminderScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderScheduler{client: client, lead: lead, loc: loc, now: time.Now}
}

// visits returns the start of every visit of r that has not begun yet.
func (s *ReminderScheduler) visits(r *models.Reservation) []time.Time {
	now := s.now()
	var out []time.Time
	for _, d := range r.Dates {
		at, err := time.ParseInLocation(reminderDateLayout+" "+reminderTimeLayout, d+" "+r.Time, s.loc)
		if err != nil {
			log.Printf("⚠️ Reservation %d has unparseable visit %q %q: %v", r.ID, d, r.Time, err)
			continue
		}
		if at.After(now) {
			out = append(out, at)
		}
	}
	return out
}

// Schedule enqueues reminders for r and returns how many were queued.
// A reminder whose lead time has already passed is sent right away.
func (s *ReminderScheduler) Schedule(ctx context.Context, r *models.Reservation) (int, error) {
	if r == nil || !r.ReminderEnabled || r.IsCancelled() {
		return 0, nil
	}
	queued := 0
	for _, visit := range s.visits(r) {
		payload, err := json.Marshal(ReminderPayload{ReservationID: r.ID, VisitAt: visit.UTC()})
		if err != nil {
			return queued, err
		}
		processAt := visit.Add(-s.lead)
		if processAt.Before(s.now()) {
			processAt = s.now()
		}
		task := asynq.NewTask(TypeReservationReminder, payload)
		_, err = s.client.EnqueueContext(ctx, task,
			asynq.ProcessAt(processAt),
			asynq.TaskID(fmt.Sprintf("reminder:%d:%d", r.ID, visit.Unix())),
			asynq.MaxRetry(5),
		)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			continue
		}
		if err != nil {
			return queued, fmt.Errorf("enqueue reminder for reservation %d: %w", r.ID, err)
		}
		queued++
	}
	return queued, nil
}

// AfterCommit has the shape of a booking wizard commit hook.
func (s *ReminderScheduler) AfterCommit(ctx context.Context, r *models.Reservation) {
	n, err := s.Schedule(ctx, r)
	if err != nil {
		log.Printf("❌ Failed to schedule reminders for reservation %d: %v", r.ID, err)
		return
	}
	if n > 0 {
		log.Printf("⏰ Scheduled %d reminders for reservation %d", n, r.ID)
	}
}

// TaskProcessor holds what the task handlers need.
type TaskProcessor struct {
	reservations ReservationReader
	notifier     Notifier
	loc          *time.Location
}

func NewTaskProcessor(reservations ReservationReader, notifier Notifier, loc *time.Location) *TaskProcessor {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskProcessor{reservations: reservations, notifier: notifier, loc: loc}
}

// HandleReservationReminder notifies the customer, and the cleaner when one
// is assigned, about an upcoming visit. Cancelled reservations and ones
// with reminders switched off are dropped quietly.
func (p *TaskProcessor) HandleReservationReminder(ctx context.Context, t *asynq.Task) error {
	var payload ReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	r, err := p.reservations.GetByID(ctx, payload.ReservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("reservation %d not found: %w", payload.ReservationID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if r.IsCancelled() || !r.ReminderEnabled {
		log.Printf("⚠️ Skipping reminder for reservation %d (status %s)", r.ID, r.Status)
		return nil
	}

	when := payload.VisitAt.In(p.loc).Format("Mon Jan 2 15:04")
	recipients := []uint{r.UserID}
	if r.CleanerID != nil {
		recipients = append(recipients, *r.CleanerID)
	}
	for _, userID := range recipients {
		_, err := p.notifier.Create(ctx, notifications.NewNotification{
			UserID:    userID,
			Title:     "Upcoming cleaning",
			Message:   fmt.Sprintf("Cleaning at %s is scheduled for %s.", r.Address, when),
			Type:      models.NotificationReminder,
			ActionURL: fmt.Sprintf("/reservations/%d", r.ID),
			Data:      map[string]interface{}{"reservation_id": r.ID, "visit_at": payload.VisitAt},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SetupServer configures the reminder worker. The caller runs it with the
// returned mux.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("❌ Task %s failed: %v (payload %s)", task.Type(), err, string(task.Payload()))
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReservationReminder, processor.HandleReservationReminder)
	return srv, mux
}
