package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/certhub/internal/domain/participant"
	"github.com/geocoder89/certhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipantsRepo reads the tables owned by the registration service.
// Strictly read-only here.
type ParticipantsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewParticipantsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ParticipantsRepo {
	return &ParticipantsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *ParticipantsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// GetResolved fetches a participant joined with its owning user and event
// in one read. Inner joins: a participant whose user or event row is gone
// is an upstream data problem and reads the same as "participant not found".
func (r *ParticipantsRepo) GetResolved(ctx context.Context, id string) (participant.Resolved, error) {
	var res participant.Resolved

	err := r.observe("participants.get_resolved", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT p.id, p.user_id, p.event_id, p.registration_token, p.created_at,
		       u.id, u.name, u.email,
		       e.id, e.title, e.start_at
		FROM participants p
		JOIN users u ON u.id = p.user_id
		JOIN events e ON e.id = p.event_id
		WHERE p.id = $1
	`, id).Scan(
			&res.Participant.ID, &res.Participant.UserID, &res.Participant.EventID,
			&res.Participant.RegistrationToken, &res.Participant.CreatedAt,
			&res.User.ID, &res.User.Name, &res.User.Email,
			&res.Event.ID, &res.Event.Title, &res.Event.StartAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return participant.Resolved{}, participant.ErrNotFound
		}
		return participant.Resolved{}, err
	}

	return res, nil
}

// ListIDsByEvent enumerates participant ids for an event in registration
// order. Used to snapshot a bulk batch at enqueue time.
func (r *ParticipantsRepo) ListIDsByEvent(ctx context.Context, eventID string) ([]string, error) {
	var out []string

	err := r.observe("participants.list_ids_by_event", func() error {
		rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM participants
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`, eventID)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]string, 0)

		for rows.Next() {
			var id string

			err = rows.Scan(&id)

			if err != nil {
				return err
			}

			out = append(out, id)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
