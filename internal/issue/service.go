package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/certhub/internal/domain/certificate"
	"github.com/geocoder89/certhub/internal/domain/participant"
	"github.com/geocoder89/certhub/internal/domain/template"
	"github.com/geocoder89/certhub/internal/notifications"
	"github.com/geocoder89/certhub/internal/observability"
	"github.com/geocoder89/certhub/internal/render"
	"github.com/geocoder89/certhub/internal/storage"
)

// Small interfaces so tests can fake every collaborator.

type ParticipantReader interface {
	GetResolved(ctx context.Context, id string) (participant.Resolved, error)
}

type TemplateResolver interface {
	GetByID(ctx context.Context, id string) (template.Template, error)
	Latest(ctx context.Context, name *string) (template.Template, error)
}

type CertificateInserter interface {
	Insert(ctx context.Context, req certificate.CreateRequest) (certificate.Certificate, error)
}

type Renderer interface {
	Render(ctx context.Context, tpl *template.Template, rc render.Context, outPath string) error
}

// Service issues one certificate for one participant: resolve, pick a
// template, render, record. Every call inserts a fresh registry row and
// artifact; re-issuing is reprinting, not replacing.
type Service struct {
	participants ParticipantReader
	templates    TemplateResolver
	certs        CertificateInserter
	renderer     Renderer
	notifier     notifications.Notifier
	log          *slog.Logger
	prom         *observability.Prom
	now          func() time.Time
}

func NewService(
	participants ParticipantReader,
	templates TemplateResolver,
	certs CertificateInserter,
	renderer Renderer,
	notifier notifications.Notifier,
	log *slog.Logger,
	prom *observability.Prom,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		participants: participants,
		templates:    templates,
		certs:        certs,
		renderer:     renderer,
		notifier:     notifier,
		log:          log,
		prom:         prom,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the issuance clock; tests use it to pin artifact paths.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) Issue(ctx context.Context, participantID string, templateID *string) (certificate.Certificate, error) {
	res, err := s.participants.GetResolved(ctx, participantID)

	if err != nil {
		return certificate.Certificate{}, err
	}

	tpl, err := s.resolveTemplate(ctx, templateID)

	if err != nil {
		return certificate.Certificate{}, err
	}

	rc := render.ContextFrom(res)
	outPath := storage.OutputPath(res.Event.ID, res.User.ID, s.now())

	err = s.renderer.Render(ctx, tpl, rc, outPath)

	if err != nil {
		// only the fallback layout itself can fail this way; fatal
		return certificate.Certificate{}, fmt.Errorf("%w: %v", certificate.ErrGenerationFailed, err)
	}

	cert, err := s.certs.Insert(ctx, certificate.CreateRequest{
		UserID:          res.User.ID,
		EventID:         res.Event.ID,
		CertificatePath: outPath,
		IssuedAt:        s.now(),
	})

	if err != nil {
		return certificate.Certificate{}, err
	}

	if s.prom != nil {
		s.prom.CertificatesIssued.Inc()
	}

	s.log.InfoContext(ctx, "certificate.issued",
		"certificate_id", cert.ID,
		"participant_id", participantID,
		"event_id", res.Event.ID,
		"user_id", res.User.ID,
		"path", outPath,
	)

	s.notify(ctx, res, cert)

	return cert, nil
}

// resolveTemplate picks the explicit template when an id is given,
// otherwise the latest. A nil return with nil error means "no template,
// use fallback".
func (s *Service) resolveTemplate(ctx context.Context, templateID *string) (*template.Template, error) {
	if templateID != nil {
		t, err := s.templates.GetByID(ctx, *templateID)

		if err != nil {
			return nil, err
		}

		return &t, nil
	}

	t, err := s.templates.Latest(ctx, nil)

	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &t, nil
}

// notify is best-effort: a notification failure never unrolls issuance.
func (s *Service) notify(ctx context.Context, res participant.Resolved, cert certificate.Certificate) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.SendCertificateIssued(ctx, notifications.CertificateIssuedInput{
		Email:         res.User.Email,
		Name:          res.User.Name,
		EventTitle:    res.Event.Title,
		CertificateID: cert.ID,
	})

	if err != nil {
		s.log.WarnContext(ctx, "certificate.notify_failed",
			"certificate_id", cert.ID,
			"err", err,
		)
	}
}
