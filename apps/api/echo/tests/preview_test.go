package tests

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"

	echoapi "github.com/GanpatGang/GanpatStudy/apps/api/echo"
	"github.com/GanpatGang/GanpatStudy/core/preview"
	"github.com/GanpatGang/GanpatStudy/core/user"
)

// pdfDocument builds a valid n-page document; the xref offsets are taken
// from the buffer as it grows, never hand-counted.
func pdfDocument(n int) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, n+2)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", i+3))
	}
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n", i+3))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefOffset)
	return buf.Bytes()
}

func openPreview(t *testing.T, deps *testDeps, token, name string, wantCode int) preview.ViewInfo {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/v1/previews", token, marchallObj(t, echoapi.OpenPreviewRequest{Name: name}))
	deps.app.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("open preview: code = %v; want %v; body = %s", rec.Code, wantCode, rec.Body.String())
	}
	var view preview.ViewInfo
	if wantCode == http.StatusCreated {
		decodeBody(t, rec, &view)
	}
	return view
}

func previewOp(t *testing.T, deps *testDeps, token, method, path string, body ...[]byte) (*preview.ViewInfo, int) {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, body...)
	deps.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		return nil, rec.Code
	}
	var view preview.ViewInfo
	decodeBody(t, rec, &view)
	return &view, rec.Code
}

func seedMaterial(t *testing.T, deps *testDeps, token, name, contentType, payload string) {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/v1/materials", token, uploadBody(t, name, contentType, b64(payload)))
	deps.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seeding %s failed: code = %v; body = %s", name, rec.Code, rec.Body.String())
	}
}

func Test_previewApi_inline(t *testing.T) {
	deps := setup(t)

	teacher := createUser(t, deps.usrRepo, "Teacher", "teach", "teach@test.in", "", []string{user.RoleTeacher}, true)
	student := createUser(t, deps.usrRepo, "Hero", "hero", "hero@test.in", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	seedMaterial(t, deps, getToken(t, teacher), "pic.png", "image/png", "png-bytes")

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/previews", marchallObj(t, echoapi.OpenPreviewRequest{Name: "pic.png"}))
		deps.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("Unknown material", func(t *testing.T) {
		openPreview(t, deps, studentToken, "nope.png", http.StatusNotFound)
	})

	t.Run("Image previews inline", func(t *testing.T) {
		view := openPreview(t, deps, studentToken, "pic.png", http.StatusCreated)

		if view.State != preview.StateReady {
			t.Errorf("state = %q; want %q", view.State, preview.StateReady)
		}
		if view.Viewer != preview.ViewerInline {
			t.Errorf("viewer = %q; want %q", view.Viewer, preview.ViewerInline)
		}
		if !strings.HasPrefix(view.DataURL, "data:image/png;base64,") {
			t.Errorf("data_url = %q; want a png data URL", view.DataURL)
		}

		// visible again on retrieval
		got, code := previewOp(t, deps, studentToken, http.MethodGet, "/v1/previews/"+view.SessionID)
		if code != http.StatusOK {
			t.Fatalf("retrieve: code = %v", code)
		}
		if got.State != preview.StateReady || got.DataURL == "" {
			t.Errorf("retrieved view = %+v; want ready with data_url", got)
		}
	})
}

func Test_previewApi_officeDoc(t *testing.T) {
	deps := setup(t)

	teacher := createUser(t, deps.usrRepo, "Teacher", "teach", "teach@test.in", "", []string{user.RoleTeacher}, true)
	student := createUser(t, deps.usrRepo, "Hero", "hero", "hero@test.in", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	const docBytes = "docx-bytes"
	seedMaterial(t, deps, getToken(t, teacher), "homework.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", docBytes)

	view := openPreview(t, deps, studentToken, "homework.docx", http.StatusCreated)

	if view.State != preview.StateLoading {
		t.Errorf("state = %q; want %q", view.State, preview.StateLoading)
	}
	if view.Viewer != preview.ViewerGoogle {
		t.Errorf("viewer = %q; want %q", view.Viewer, preview.ViewerGoogle)
	}
	if !strings.Contains(view.EmbedURL, "/v1/blobs/") {
		t.Errorf("embed_url = %q; want it to wrap a blob URL", view.EmbedURL)
	}

	t.Run("Blob is served without auth", func(t *testing.T) {
		i := strings.LastIndex(view.BlobURL, "/")
		if i < 0 {
			t.Fatalf("blob_url = %q", view.BlobURL)
		}
		token := view.BlobURL[i+1:]

		req, rec := newRequest(http.MethodGet, "/v1/blobs/"+token)
		deps.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		if rec.Body.String() != docBytes {
			t.Errorf("body = %q; want the raw document", rec.Body.String())
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline;") {
			t.Errorf("Content-Disposition = %q; want inline", cd)
		}
	})

	t.Run("Viewer reports loaded", func(t *testing.T) {
		got, code := previewOp(t, deps, studentToken, http.MethodPost, "/v1/previews/"+view.SessionID+"/loaded")
		if code != http.StatusOK {
			t.Fatalf("markLoaded: code = %v", code)
		}
		if got.State != preview.StateReady {
			t.Errorf("state = %q; want %q", got.State, preview.StateReady)
		}
	})

	t.Run("Switch is refused once ready", func(t *testing.T) {
		_, code := previewOp(t, deps, studentToken, http.MethodPost, "/v1/previews/"+view.SessionID+"/switch-viewer")
		if code != http.StatusConflict {
			t.Errorf("switchViewer: code = %v; want %v", code, http.StatusConflict)
		}
	})

	t.Run("Close revokes the blob", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/previews/"+view.SessionID, studentToken)
		deps.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("close: code = %v; body = %s", rec.Code, rec.Body.String())
		}

		_, code := previewOp(t, deps, studentToken, http.MethodGet, "/v1/previews/"+view.SessionID)
		if code != http.StatusNotFound {
			t.Errorf("retrieve after close: code = %v; want %v", code, http.StatusNotFound)
		}
		if n := deps.previewMgr.Blobs().Len(); n != 0 {
			t.Errorf("blobs left = %d; want 0", n)
		}
	})
}

func Test_previewApi_presentation(t *testing.T) {
	deps := setup(t)

	teacher := createUser(t, deps.usrRepo, "Teacher", "teach", "teach@test.in", "", []string{user.RoleTeacher}, true)
	student := createUser(t, deps.usrRepo, "Hero", "hero", "hero@test.in", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	seedMaterial(t, deps, getToken(t, teacher), "slides.pptx",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation", "pptx-bytes")

	view := openPreview(t, deps, studentToken, "slides.pptx", http.StatusCreated)

	if view.State != preview.StateLoading {
		t.Errorf("state = %q; want %q", view.State, preview.StateLoading)
	}
	if view.Viewer != preview.ViewerOffice {
		t.Errorf("viewer = %q; want %q", view.Viewer, preview.ViewerOffice)
	}
	if !strings.Contains(view.EmbedURL, "files.example.com") {
		t.Errorf("embed_url = %q; want the publicly hosted copy", view.EmbedURL)
	}
}

func Test_previewApi_pdf(t *testing.T) {
	deps := setup(t)

	teacher := createUser(t, deps.usrRepo, "Teacher", "teach", "teach@test.in", "", []string{user.RoleTeacher}, true)
	student := createUser(t, deps.usrRepo, "Hero", "hero", "hero@test.in", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	seedMaterial(t, deps, getToken(t, teacher), "notes.pdf", "application/pdf", string(pdfDocument(2)))

	view := openPreview(t, deps, studentToken, "notes.pdf", http.StatusCreated)

	if view.State != preview.StateReady {
		t.Fatalf("state = %q; want %q; message = %q", view.State, preview.StateReady, view.Message)
	}
	if view.Viewer != preview.ViewerPDF {
		t.Errorf("viewer = %q; want %q", view.Viewer, preview.ViewerPDF)
	}
	if view.Page != 1 || view.PageCount != 2 {
		t.Errorf("page = %d/%d; want 1/2", view.Page, view.PageCount)
	}

	t.Run("Paging and zoom", func(t *testing.T) {
		got, code := previewOp(t, deps, studentToken, http.MethodPost, "/v1/previews/"+view.SessionID+"/pages/next")
		if code != http.StatusOK {
			t.Fatalf("nextPage: code = %v", code)
		}
		if got.Page != 2 {
			t.Errorf("page = %d; want 2", got.Page)
		}

		got, code = previewOp(t, deps, studentToken, http.MethodPut, "/v1/previews/"+view.SessionID+"/zoom", marchallObj(t, echoapi.ZoomRequest{Zoom: 150}))
		if code != http.StatusOK {
			t.Fatalf("setZoom: code = %v", code)
		}
		if got.Zoom != 150 {
			t.Errorf("zoom = %d; want 150", got.Zoom)
		}
	})

	t.Run("Current page downloads as pdf", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/previews/"+view.SessionID+"/page.pdf", studentToken)
		deps.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("Content-Type = %q; want application/pdf", ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
			t.Errorf("body does not start with the pdf header")
		}
	})
}

func Test_previewApi_failedPDF(t *testing.T) {
	deps := setup(t)

	teacher := createUser(t, deps.usrRepo, "Teacher", "teach", "teach@test.in", "", []string{user.RoleTeacher}, true)
	student := createUser(t, deps.usrRepo, "Hero", "hero", "hero@test.in", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	seedMaterial(t, deps, getToken(t, teacher), "broken.pdf", "application/pdf", "not a pdf at all")

	view := openPreview(t, deps, studentToken, "broken.pdf", http.StatusCreated)

	if view.State != preview.StateFailed {
		t.Fatalf("state = %q; want %q", view.State, preview.StateFailed)
	}
	if !view.CanRetry {
		t.Error("expected a retryable failure")
	}
	if view.RetriesLeft != conf.Preview.MaxRetries {
		t.Errorf("retries_left = %d; want %d", view.RetriesLeft, conf.Preview.MaxRetries)
	}

	t.Run("Retry decrements", func(t *testing.T) {
		got, code := previewOp(t, deps, studentToken, http.MethodPost, "/v1/previews/"+view.SessionID+"/retry")
		if code != http.StatusOK {
			t.Fatalf("retry: code = %v", code)
		}
		if got.State != preview.StateFailed {
			t.Errorf("state = %q; want %q", got.State, preview.StateFailed)
		}
		if got.RetriesLeft != conf.Preview.MaxRetries-1 {
			t.Errorf("retries_left = %d; want %d", got.RetriesLeft, conf.Preview.MaxRetries-1)
		}
	})

	t.Run("Paging needs a rendered PDF", func(t *testing.T) {
		_, code := previewOp(t, deps, studentToken, http.MethodPost, "/v1/previews/"+view.SessionID+"/pages/next")
		if code != http.StatusConflict {
			t.Errorf("nextPage: code = %v; want %v", code, http.StatusConflict)
		}
		_, code = previewOp(t, deps, studentToken, http.MethodPut, "/v1/previews/"+view.SessionID+"/zoom", marchallObj(t, echoapi.ZoomRequest{Zoom: 150}))
		if code != http.StatusConflict {
			t.Errorf("setZoom: code = %v; want %v", code, http.StatusConflict)
		}
	})
}

func Test_previewApi_fallback(t *testing.T) {
	deps := setup(t)

	teacher := createUser(t, deps.usrRepo, "Teacher", "teach", "teach@test.in", "", []string{user.RoleTeacher}, true)
	student := createUser(t, deps.usrRepo, "Hero", "hero", "hero@test.in", "", []string{user.RoleStudent}, true)
	studentToken := getToken(t, student)

	seedMaterial(t, deps, getToken(t, teacher), "archive.zip", "application/zip", "zip-bytes")

	view := openPreview(t, deps, studentToken, "archive.zip", http.StatusCreated)

	if view.State != preview.StateFallback {
		t.Errorf("state = %q; want %q", view.State, preview.StateFallback)
	}
	if view.CanSwitch || view.CanRetry {
		t.Errorf("view = %+v; fallback offers download only", view)
	}
}
