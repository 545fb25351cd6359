package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/geocoder89/certhub/internal/domain/template"
	"github.com/geocoder89/certhub/internal/storage"
	"github.com/geocoder89/certhub/internal/templates"
	"github.com/geocoder89/certhub/internal/utils"
	"github.com/gin-gonic/gin"
)

const maxTemplateUploadBytes = 5 << 20 // 5MB

type TemplatesHandler struct {
	store *templates.Store
	root  storage.Root
}

func NewTemplatesHandler(store *templates.Store, root storage.Root) *TemplatesHandler {
	return &TemplatesHandler{store: store, root: root}
}

// content types accepted per file extension

func contentTypeFor(filename string) (template.ContentType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		return template.ContentHTML, true
	case ".png", ".jpg", ".jpeg":
		return template.ContentImage, true
	case ".pdf":
		return template.ContentPDF, true
	default:
		return "", false
	}
}

// POST /admin/certificates/templates (multipart: file, name?)

func (h *TemplatesHandler) Upload(ctx *gin.Context) {
	file, err := ctx.FormFile("file")

	if err != nil {
		RespondBadRequest(ctx, "file is required", nil)
		return
	}

	if file.Size > maxTemplateUploadBytes {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "file_too_large", "Template file exceeds 5MB", nil)
		return
	}

	ct, ok := contentTypeFor(file.Filename)

	if !ok {
		RespondBadRequest(ctx, "Unsupported template file type", gin.H{
			"allowed": []string{".html", ".htm", ".png", ".jpg", ".jpeg", ".pdf"},
		})
		return
	}

	name := strings.TrimSpace(ctx.PostForm("name"))

	if name == "" {
		name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	// timestamp prefix keeps distinct uploads of the same file apart
	stored := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
	rel := storage.TemplatePath(stored)

	if err := h.root.EnsureParent(rel); err != nil {
		RespondInternal(ctx, "Could not store template file")
		return
	}

	if err := ctx.SaveUploadedFile(file, h.root.Abs(rel)); err != nil {
		RespondInternal(ctx, "Could not store template file")
		return
	}

	t, err := h.store.Create(ctx.Request.Context(), template.CreateRequest{
		Name:        name,
		FilePath:    rel,
		ContentType: ct,
	})

	if err != nil {
		if errors.Is(err, template.ErrInvalidContentType) {
			RespondBadRequest(ctx, "Unsupported template content type", nil)
			return
		}

		RespondInternal(ctx, "Could not create template")
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

// GET /admin/certificates/templates

func (h *TemplatesHandler) List(ctx *gin.Context) {
	items, err := h.store.List(ctx.Request.Context())

	if err != nil {
		RespondInternal(ctx, "Could not list templates")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}

// GET /admin/certificates/templates/:id

func (h *TemplatesHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_id", nil)
		return
	}

	t, err := h.store.GetByID(ctx.Request.Context(), id)

	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			RespondNotFound(ctx, "Template not found")
			return
		}

		RespondInternal(ctx, "Could not fetch template")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

// DELETE /admin/certificates/templates/:id

func (h *TemplatesHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_id", nil)
		return
	}

	t, err := h.store.Delete(ctx.Request.Context(), id)

	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			RespondNotFound(ctx, "Template not found")
			return
		}

		RespondInternal(ctx, "Could not delete template")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"deleted": true,
		"id":      t.ID,
		"name":    t.Name,
		"version": t.Version,
	})
}
