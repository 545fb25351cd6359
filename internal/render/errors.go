package render

import "errors"

var (
	// catalog row exists but the backing file is gone; absorbed by fallback
	ErrTemplateUnavailable = errors.New("template file unavailable")

	// headless surface error or timeout; absorbed by fallback
	ErrSurface = errors.New("rendering surface failed")

	// writing the final PDF failed; fatal, surfaces to the caller
	ErrArtifactWrite = errors.New("artifact write failed")
)
