package template

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentHTML  ContentType = "html"
	ContentImage ContentType = "image"
	ContentPDF   ContentType = "pdf"
)

func (t ContentType) IsValid() bool {
	switch t {
	case ContentHTML, ContentImage, ContentPDF:
		return true
	default:
		return false
	}
}

var ErrNotFound = errors.New("template not found")
var ErrInvalidContentType = errors.New("invalid template content type")

// Template is one immutable catalog row. FilePath is relative to the upload root.
type Template struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	FilePath    string      `json:"filePath"`
	ContentType ContentType `json:"contentType"`
	Version     int         `json:"version"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type CreateRequest struct {
	Name        string
	FilePath    string
	ContentType ContentType
}

// A factory to build a Template from the incoming request.
// Version is left at zero here; the store assigns max(name)+1 on insert.

func NewFromCreateRequest(req CreateRequest) Template {
	return Template{
		ID:          uuid.NewString(),
		Name:        req.Name,
		FilePath:    req.FilePath,
		ContentType: req.ContentType,
		CreatedAt:   time.Now().UTC(),
	}
}
