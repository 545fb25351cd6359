package issue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/certhub/internal/domain/certificate"
	"github.com/geocoder89/certhub/internal/domain/participant"
	"github.com/geocoder89/certhub/internal/domain/template"
	"github.com/geocoder89/certhub/internal/notifications"
	"github.com/geocoder89/certhub/internal/render"
	"github.com/geocoder89/certhub/internal/repo/memory"
)

type fakeParticipants struct {
	getFn func(ctx context.Context, id string) (participant.Resolved, error)
}

func (f *fakeParticipants) GetResolved(ctx context.Context, id string) (participant.Resolved, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return participant.Resolved{}, participant.ErrNotFound
}

type fakeTemplates struct {
	getFn    func(ctx context.Context, id string) (template.Template, error)
	latestFn func(ctx context.Context, name *string) (template.Template, error)
}

func (f *fakeTemplates) GetByID(ctx context.Context, id string) (template.Template, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return template.Template{}, template.ErrNotFound
}

func (f *fakeTemplates) Latest(ctx context.Context, name *string) (template.Template, error) {
	if f.latestFn != nil {
		return f.latestFn(ctx, name)
	}
	return template.Template{}, template.ErrNotFound
}

type fakeRenderer struct {
	renderFn func(ctx context.Context, tpl *template.Template, rc render.Context, outPath string) error
	calls    int
	lastTpl  *template.Template
	lastPath string
}

func (f *fakeRenderer) Render(ctx context.Context, tpl *template.Template, rc render.Context, outPath string) error {
	f.calls++
	f.lastTpl = tpl
	f.lastPath = outPath

	if f.renderFn != nil {
		return f.renderFn(ctx, tpl, rc, outPath)
	}
	return nil
}

type fakeNotifier struct {
	sendFn func(ctx context.Context, input notifications.CertificateIssuedInput) error
	calls  int
}

func (f *fakeNotifier) SendCertificateIssued(ctx context.Context, input notifications.CertificateIssuedInput) error {
	f.calls++

	if f.sendFn != nil {
		return f.sendFn(ctx, input)
	}
	return nil
}

func resolvedFixture() participant.Resolved {
	return participant.Resolved{
		Participant: participant.Participant{
			ID:                "p-1",
			UserID:            "u-1",
			EventID:           "e-1",
			RegistrationToken: "tok-1",
		},
		User: participant.User{ID: "u-1", Name: "Ada Lovelace", Email: "ada@example.com"},
		Event: participant.Event{
			ID:      "e-1",
			Title:   "GopherCon",
			StartAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestIssueUnknownParticipant(t *testing.T) {
	certs := memory.NewCertificatesRepo()
	renderer := &fakeRenderer{}

	svc := NewService(&fakeParticipants{}, &fakeTemplates{}, certs, renderer, nil, nil, nil)

	_, err := svc.Issue(context.Background(), "p-missing", nil)

	if !errors.Is(err, participant.ErrNotFound) {
		t.Fatalf("err = %v, want participant.ErrNotFound", err)
	}

	if renderer.calls != 0 {
		t.Errorf("renderer must not run for unknown participant")
	}

	if len(certs.All()) != 0 {
		t.Errorf("no registry row may exist, got %d", len(certs.All()))
	}
}

func TestIssueSuccessWithLatestTemplate(t *testing.T) {
	certs := memory.NewCertificatesRepo()
	renderer := &fakeRenderer{}
	notifier := &fakeNotifier{}

	tpl := template.Template{ID: "t-1", Name: "classic", ContentType: template.ContentHTML, Version: 2}

	parts := &fakeParticipants{
		getFn: func(ctx context.Context, id string) (participant.Resolved, error) {
			return resolvedFixture(), nil
		},
	}
	tpls := &fakeTemplates{
		latestFn: func(ctx context.Context, name *string) (template.Template, error) {
			if name != nil {
				t.Errorf("default resolution must not filter by name")
			}
			return tpl, nil
		},
	}

	fixed := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	svc := NewService(parts, tpls, certs, renderer, notifier, nil, nil).
		WithClock(func() time.Time { return fixed })

	cert, err := svc.Issue(context.Background(), "p-1", nil)

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if renderer.calls != 1 {
		t.Fatalf("renderer calls = %d, want 1", renderer.calls)
	}

	if renderer.lastTpl == nil || renderer.lastTpl.ID != "t-1" {
		t.Errorf("renderer got tpl %+v, want t-1", renderer.lastTpl)
	}

	if !strings.HasPrefix(cert.CertificatePath, "certificates/output/certificate-e-1-u-1-") {
		t.Errorf("unexpected artifact path %q", cert.CertificatePath)
	}

	if cert.CertificatePath != renderer.lastPath {
		t.Errorf("registry path %q != rendered path %q", cert.CertificatePath, renderer.lastPath)
	}

	if cert.UserID != "u-1" || cert.EventID != "e-1" {
		t.Errorf("wrong ownership on cert: %+v", cert)
	}

	if notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", notifier.calls)
	}
}

func TestIssueNoTemplatesMeansFallback(t *testing.T) {
	certs := memory.NewCertificatesRepo()
	renderer := &fakeRenderer{}

	parts := &fakeParticipants{
		getFn: func(ctx context.Context, id string) (participant.Resolved, error) {
			return resolvedFixture(), nil
		},
	}

	// empty catalog: Latest reports not found, issuance continues
	svc := NewService(parts, &fakeTemplates{}, certs, renderer, nil, nil, nil)

	_, err := svc.Issue(context.Background(), "p-1", nil)

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if renderer.lastTpl != nil {
		t.Errorf("renderer should get a nil template, got %+v", renderer.lastTpl)
	}
}

func TestIssueExplicitTemplateNotFound(t *testing.T) {
	certs := memory.NewCertificatesRepo()
	renderer := &fakeRenderer{}

	parts := &fakeParticipants{
		getFn: func(ctx context.Context, id string) (participant.Resolved, error) {
			return resolvedFixture(), nil
		},
	}

	svc := NewService(parts, &fakeTemplates{}, certs, renderer, nil, nil, nil)

	tid := "t-missing"
	_, err := svc.Issue(context.Background(), "p-1", &tid)

	if !errors.Is(err, template.ErrNotFound) {
		t.Fatalf("err = %v, want template.ErrNotFound", err)
	}

	if renderer.calls != 0 {
		t.Errorf("renderer must not run when an explicit template is missing")
	}

	if len(certs.All()) != 0 {
		t.Errorf("no registry row may exist")
	}
}

func TestIssueRenderFailureWritesNothing(t *testing.T) {
	certs := memory.NewCertificatesRepo()

	renderer := &fakeRenderer{
		renderFn: func(ctx context.Context, tpl *template.Template, rc render.Context, outPath string) error {
			return errors.New("disk full")
		},
	}

	parts := &fakeParticipants{
		getFn: func(ctx context.Context, id string) (participant.Resolved, error) {
			return resolvedFixture(), nil
		},
	}

	svc := NewService(parts, &fakeTemplates{}, certs, renderer, nil, nil, nil)

	_, err := svc.Issue(context.Background(), "p-1", nil)

	if !errors.Is(err, certificate.ErrGenerationFailed) {
		t.Fatalf("err = %v, want certificate.ErrGenerationFailed", err)
	}

	if len(certs.All()) != 0 {
		t.Errorf("failed render must not leave a registry row")
	}
}

func TestIssueNotifierFailureDoesNotUnrollIssuance(t *testing.T) {
	certs := memory.NewCertificatesRepo()
	renderer := &fakeRenderer{}

	notifier := &fakeNotifier{
		sendFn: func(ctx context.Context, input notifications.CertificateIssuedInput) error {
			return errors.New("smtp down")
		},
	}

	parts := &fakeParticipants{
		getFn: func(ctx context.Context, id string) (participant.Resolved, error) {
			return resolvedFixture(), nil
		},
	}

	svc := NewService(parts, &fakeTemplates{}, certs, renderer, notifier, nil, nil)

	cert, err := svc.Issue(context.Background(), "p-1", nil)

	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if cert.ID == "" {
		t.Fatalf("expected an issued certificate")
	}

	if len(certs.All()) != 1 {
		t.Errorf("registry rows = %d, want 1", len(certs.All()))
	}
}

func TestIssueTwiceProducesTwoDistinctCertificates(t *testing.T) {
	certs := memory.NewCertificatesRepo()
	renderer := &fakeRenderer{}

	parts := &fakeParticipants{
		getFn: func(ctx context.Context, id string) (participant.Resolved, error) {
			return resolvedFixture(), nil
		},
	}

	svc := NewService(parts, &fakeTemplates{}, certs, renderer, nil, nil, nil)

	first, err := svc.Issue(context.Background(), "p-1", nil)
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}

	second, err := svc.Issue(context.Background(), "p-1", nil)
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	if first.ID == second.ID {
		t.Errorf("re-issuance must create a new row")
	}

	if first.CertificatePath == second.CertificatePath {
		t.Errorf("artifact paths must never collide")
	}
}
