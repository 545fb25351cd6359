package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Surface is the external rendering process that turns an HTML document
// into PDF bytes. Kept as a small interface so tests can fake it and so a
// failed/hung surface call can be absorbed by the engine.
type Surface interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// A4 portrait dimensions in inches; the landscape flag rotates the page.
const (
	paperWidthIn  = 8.27
	paperHeightIn = 11.69
)

// ChromeSurface drives a headless Chrome via CDP. The browser is acquired
// per render and torn down on every exit path so a timed-out or crashed
// render never leaks a subprocess into the next one.
type ChromeSurface struct {
	timeout  time.Duration
	execPath string
}

func NewChromeSurface(timeout time.Duration) *ChromeSurface {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &ChromeSurface{timeout: timeout}
}

// WithExecPath pins the browser binary (CHROME_PATH); otherwise chromedp
// discovers one on PATH.
func (s *ChromeSurface) WithExecPath(path string) *ChromeSurface {
	s.execPath = path
	return s
}

func (s *ChromeSurface) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)

	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte

	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)

			if err != nil {
				return err
			}

			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithLandscape(true).
				WithPrintBackground(true).
				WithPaperWidth(paperWidthIn).
				WithPaperHeight(paperHeightIn).
				Do(ctx)

			if err != nil {
				return err
			}

			pdf = buf
			return nil
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSurface, err)
	}

	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty pdf from browser", ErrSurface)
	}

	return pdf, nil
}
