package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/certhub/internal/cache"
	"github.com/geocoder89/certhub/internal/http/handlers"
	"github.com/geocoder89/certhub/internal/repo/memory"
	"github.com/geocoder89/certhub/internal/storage"
	"github.com/geocoder89/certhub/internal/templates"
	"github.com/gin-gonic/gin"
)

func templatesRouter(t *testing.T) (*gin.Engine, *templates.Store, storage.Root) {
	t.Helper()

	root := storage.NewRoot(t.TempDir())
	store := templates.New(memory.NewTemplatesRepo(), root, cache.New(time.Minute), nil)
	h := handlers.NewTemplatesHandler(store, root)

	r := gin.New()
	r.POST("/admin/certificates/templates", h.Upload)
	r.GET("/admin/certificates/templates", h.List)
	r.GET("/admin/certificates/templates/:id", h.GetByID)
	r.DELETE("/admin/certificates/templates/:id", h.Delete)

	return r, store, root
}

func multipartUpload(t *testing.T, filename, name, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)

	if err != nil {
		t.Fatal(err)
	}

	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}

	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			t.Fatal(err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	return &buf, mw.FormDataContentType()
}

func TestUploadTemplateStoresFileAndRow(t *testing.T) {
	r, _, root := templatesRouter(t)

	body, ct := multipartUpload(t, "classic.html", "classic", "<html>{{.Name}}</html>")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/certificates/templates", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Version     int    `json:"version"`
		FilePath    string `json:"filePath"`
		ContentType string `json:"contentType"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	if resp.Name != "classic" || resp.Version != 1 || resp.ContentType != "html" {
		t.Errorf("resp = %+v", resp)
	}

	if !strings.HasPrefix(resp.FilePath, "certificates/templates/") {
		t.Errorf("filePath = %s", resp.FilePath)
	}

	if !root.Exists(resp.FilePath) {
		t.Errorf("uploaded file missing at %s", resp.FilePath)
	}
}

func TestUploadTemplateVersionsIncrement(t *testing.T) {
	r, _, _ := templatesRouter(t)

	upload := func() int {
		body, ct := multipartUpload(t, "classic.html", "classic", "<html></html>")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/certificates/templates", body)
		req.Header.Set("Content-Type", ct)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}

		var resp struct {
			Version int `json:"version"`
		}

		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}

		return resp.Version
	}

	if v := upload(); v != 1 {
		t.Errorf("first upload version = %d", v)
	}

	if v := upload(); v != 2 {
		t.Errorf("second upload version = %d", v)
	}
}

func TestUploadTemplateRejectsUnsupportedExtension(t *testing.T) {
	r, _, _ := templatesRouter(t)

	body, ct := multipartUpload(t, "certificate.docx", "", "not a template")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/certificates/templates", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestUploadTemplateRequiresFile(t *testing.T) {
	r, _, _ := templatesRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/certificates/templates", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestTemplatesListAndETag(t *testing.T) {
	r, _, _ := templatesRouter(t)

	body, ct := multipartUpload(t, "classic.html", "classic", "<html></html>")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/certificates/templates", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/admin/certificates/templates", nil))

	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}

	etag := first.Header().Get("ETag")

	if etag == "" {
		t.Fatal("missing ETag header")
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/certificates/templates", nil)
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(second, req)

	if second.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", second.Code)
	}
}

func TestDeleteTemplateRemovesRow(t *testing.T) {
	r, _, _ := templatesRouter(t)

	body, ct := multipartUpload(t, "classic.html", "classic", "<html></html>")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/certificates/templates", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)

	var created struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	del := httptest.NewRecorder()
	r.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/admin/certificates/templates/"+created.ID, nil))

	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", del.Code, del.Body.String())
	}

	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/admin/certificates/templates/"+created.ID, nil))

	if get.Code != http.StatusNotFound {
		t.Errorf("deleted template still resolves, status = %d", get.Code)
	}
}
