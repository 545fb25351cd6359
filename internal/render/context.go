package render

import (
	"time"

	"github.com/geocoder89/certhub/internal/domain/participant"
)

// Context carries the fields substituted into a template (or drawn by the
// fallback layout). Ephemeral: built fresh per issuance, never persisted.
type Context struct {
	Name              string
	EventTitle        string
	Date              string // plain calendar date, no time component
	RegistrationToken string
}

// ContextFrom builds a render context from the resolved read models.
// The token is carried for traceability even though the fallback layout
// does not draw it.
func ContextFrom(res participant.Resolved) Context {
	date := ""

	if !res.Event.StartAt.IsZero() {
		date = res.Event.StartAt.UTC().Format(time.DateOnly)
	}

	return Context{
		Name:              res.User.Name,
		EventTitle:        res.Event.Title,
		Date:              date,
		RegistrationToken: res.Participant.RegistrationToken,
	}
}

// placeholder names exposed to HTML templates, matching what template
// authors already use in the admin tooling
func (c Context) templateData() map[string]string {
	return map[string]string{
		"name":               c.Name,
		"event_title":        c.EventTitle,
		"date":               c.Date,
		"registration_token": c.RegistrationToken,
	}
}
