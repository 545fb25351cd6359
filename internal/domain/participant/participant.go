package participant

import (
	"errors"
	"time"
)

// Read models only. Registration/check-in owns the write path for these
// tables; this service never inserts or updates them.

var ErrNotFound = errors.New("participant not found")

type Participant struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	EventID           string    `json:"eventId"`
	RegistrationToken string    `json:"registrationToken"`
	CreatedAt         time.Time `json:"createdAt"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Event struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	StartAt time.Time `json:"startAt"`
}

// Resolved is a participant joined with its owning user and event,
// loaded in one read so issuance sees a consistent snapshot.
type Resolved struct {
	Participant Participant
	User        User
	Event       Event
}
