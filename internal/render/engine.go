package render

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"os"
	"strings"

	"github.com/geocoder89/certhub/internal/domain/template"
	"github.com/geocoder89/certhub/internal/observability"
	"github.com/geocoder89/certhub/internal/storage"
)

// Engine is the two-tier renderer. The contract: on a nil error a valid,
// complete PDF exists at outPath. Template-path failures (missing file,
// bad HTML, surface error or timeout) are absorbed and the fallback layout
// is drawn instead; only an output-write failure escapes.
type Engine struct {
	root     storage.Root
	surface  Surface
	fallback Fallback
	log      *slog.Logger
	prom     *observability.Prom
}

func NewEngine(root storage.Root, surface Surface, log *slog.Logger, prom *observability.Prom) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		root:     root,
		surface:  surface,
		fallback: NewFallback(),
		log:      log,
		prom:     prom,
	}
}

func (e *Engine) observe(mode, result string) {
	if e.prom != nil {
		e.prom.RenderResults.WithLabelValues(mode, result).Inc()
	}
}

// Render produces the artifact at the storage-relative outPath.
// tpl may be nil (no template in the catalog): fallback draws directly.
func (e *Engine) Render(ctx context.Context, tpl *template.Template, rc Context, outPath string) error {
	if tpl != nil && tpl.ContentType == template.ContentHTML {
		err := e.tryTemplateRender(ctx, *tpl, rc, outPath)

		if err == nil {
			e.observe("template", "ok")
			return nil
		}

		// absorbed: issuance correctness beats template fidelity
		e.log.WarnContext(ctx, "render.template_failed",
			"template_id", tpl.ID,
			"template_version", tpl.Version,
			"err", err,
		)
		e.observe("template", "error")
	}

	err := e.renderFallback(rc, outPath)

	if err != nil {
		e.observe("fallback", "error")
		return err
	}

	e.observe("fallback", "ok")
	return nil
}

// tryTemplateRender returns an error instead of panicking through the
// control flow: the caller decides (unconditionally) to fall back.
func (e *Engine) tryTemplateRender(ctx context.Context, tpl template.Template, rc Context, outPath string) error {
	raw, err := os.ReadFile(e.root.Abs(tpl.FilePath))

	if err != nil {
		return fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
	}

	html, err := substitute(string(raw), rc)

	if err != nil {
		return err
	}

	pdf, err := e.surface.RenderPDF(ctx, html)

	if err != nil {
		return err
	}

	return e.writeArtifact(outPath, pdf)
}

func (e *Engine) renderFallback(rc Context, outPath string) error {
	pdf, err := e.fallback.RenderPDF(rc)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	return e.writeArtifact(outPath, pdf)
}

// writeArtifact creates the parent directory if missing and writes the
// whole PDF in one call, so a failed render never leaves a partial file.
func (e *Engine) writeArtifact(outPath string, pdf []byte) error {
	err := e.root.EnsureParent(outPath)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	err = os.WriteFile(e.root.Abs(outPath), pdf, 0o644)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	return nil
}

func substitute(raw string, rc Context) (string, error) {
	t, err := htmltemplate.New("certificate").Parse(raw)

	if err != nil {
		return "", fmt.Errorf("%w: parse: %v", ErrSurface, err)
	}

	var b strings.Builder

	err = t.Execute(&b, rc.templateData())

	if err != nil {
		return "", fmt.Errorf("%w: execute: %v", ErrSurface, err)
	}

	return b.String(), nil
}
