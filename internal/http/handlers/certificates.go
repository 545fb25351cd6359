package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/geocoder89/certhub/internal/domain/certificate"
	"github.com/geocoder89/certhub/internal/domain/participant"
	"github.com/geocoder89/certhub/internal/domain/template"
	"github.com/geocoder89/certhub/internal/http/middlewares"
	"github.com/geocoder89/certhub/internal/issue"
	"github.com/geocoder89/certhub/internal/storage"
	"github.com/geocoder89/certhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type CertificatesReader interface {
	GetByID(ctx context.Context, id string) (certificate.Certificate, error)
	ListByUser(ctx context.Context, userID string) ([]certificate.Certificate, error)
}

type CertificatesHandler struct {
	issuer *issue.Service
	certs  CertificatesReader
	root   storage.Root
}

func NewCertificatesHandler(issuer *issue.Service, certs CertificatesReader, root storage.Root) *CertificatesHandler {
	return &CertificatesHandler{
		issuer: issuer,
		certs:  certs,
		root:   root,
	}
}

// POST /admin/certificates/generate/:participantId?templateId=

func (h *CertificatesHandler) Generate(ctx *gin.Context) {
	participantID := ctx.Param("participantId")

	if !utils.IsUUID(participantID) {
		RespondBadRequest(ctx, "invalid_participant_id", nil)
		return
	}

	var templateID *string

	if tid := ctx.Query("templateId"); tid != "" {
		if !utils.IsUUID(tid) {
			RespondBadRequest(ctx, "invalid_template_id", nil)
			return
		}
		templateID = &tid
	}

	cert, err := h.issuer.Issue(ctx.Request.Context(), participantID, templateID)

	if err != nil {
		switch {
		case errors.Is(err, participant.ErrNotFound):
			RespondNotFound(ctx, "Participant not found")
		case errors.Is(err, template.ErrNotFound):
			RespondNotFound(ctx, "Template not found")
		case errors.Is(err, certificate.ErrGenerationFailed):
			RespondInternal(ctx, "Certificate generation failed")
		default:
			RespondInternal(ctx, "Could not issue certificate")
		}
		return
	}

	ctx.JSON(http.StatusCreated, cert)
}

// GET /admin/certificates/:id/download

func (h *CertificatesHandler) Download(ctx *gin.Context) {
	h.download(ctx, nil)
}

// GET /certificates/:id/download — same as admin, plus ownership check.

func (h *CertificatesHandler) DownloadOwn(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	h.download(ctx, &userID)
}

func (h *CertificatesHandler) download(ctx *gin.Context, ownerID *string) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_id", nil)
		return
	}

	cert, err := h.certs.GetByID(ctx.Request.Context(), id)

	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) {
			RespondNotFound(ctx, "Certificate not found")
			return
		}

		RespondInternal(ctx, "Could not fetch certificate")
		return
	}

	if ownerID != nil && cert.UserID != *ownerID {
		// do not leak existence of other users' certificates
		RespondNotFound(ctx, "Certificate not found")
		return
	}

	// registry row without its file gets its own code so operators can
	// tell storage loss from a bad id
	if !h.root.Exists(cert.CertificatePath) {
		RespondNotFoundCode(ctx, "artifact_missing", "Certificate file is no longer available")
		return
	}

	abs := h.root.Abs(cert.CertificatePath)

	ctx.Header("Content-Disposition", `attachment; filename="`+filepath.Base(abs)+`"`)
	ctx.Header("Content-Type", "application/pdf")
	ctx.File(abs)
}

// GET /certificates/my

func (h *CertificatesHandler) ListMine(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	items, err := h.certs.ListByUser(ctx.Request.Context(), userID)

	if err != nil {
		RespondInternal(ctx, "Could not list certificates")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}

// GET /admin/certificates?userId=

func (h *CertificatesHandler) ListByUser(ctx *gin.Context) {
	userID := ctx.Query("userId")

	if !utils.IsUUID(userID) {
		RespondBadRequest(ctx, "userId query param must be a uuid", nil)
		return
	}

	items, err := h.certs.ListByUser(ctx.Request.Context(), userID)

	if err != nil {
		RespondInternal(ctx, "Could not list certificates")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}
