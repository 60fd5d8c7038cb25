package event

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRange = errors.New("event end time is before start time")
	ErrNotFound     = errors.New("event not found")
	ErrDuplicateID  = errors.New("event with same ID exists")
)

// Event is a single timed calendar entry. Start and End form the half-open
// interval [Start, End); back-to-back events do not overlap. Start == End is
// allowed and means a zero-duration reminder. Times are instants, comparison
// never depends on the display timezone.
type Event struct {
	ID         string    `json:"id"`
	Calendar   string    `json:"calendar"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Done       bool      `json:"done"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// New builds an event with a fresh identifier. The range is not checked here;
// validation happens when the event enters the model.
func New(title string, start, end time.Time, calendar string) Event {
	now := time.Now()
	return Event{
		ID:         NewID(),
		Calendar:   calendar,
		Title:      title,
		Start:      start,
		End:        end,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

func NewID() string {
	return uuid.NewString()
}

func (e Event) Validate() error {
	if e.End.Before(e.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Duration of the event; zero for reminders.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Title    *string
	Notes    *string
	Calendar *string
	Start    *time.Time
	End      *time.Time
	Done     *bool
}

// Apply returns a copy of e with the patch applied and ModifiedAt refreshed.
func (p Patch) Apply(e Event, now time.Time) (Event, error) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.Calendar != nil {
		e.Calendar = *p.Calendar
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.Done != nil {
		e.Done = *p.Done
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	e.ModifiedAt = now
	return e, nil
}
