package preview

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/GanpatGang/GanpatStudy/core"
	"github.com/GanpatGang/GanpatStudy/core/material"
)

type stubHost struct {
	googleCalls int32
	officeCalls int32
	uploadCalls int32
	uploadErr   error
	uploadURL   string
}

func (h *stubHost) GoogleEmbedURL(src string) string {
	atomic.AddInt32(&h.googleCalls, 1)
	return "https://docs.google.com/viewer?embedded=true&url=" + src
}

func (h *stubHost) OfficeEmbedURL(src string) string {
	atomic.AddInt32(&h.officeCalls, 1)
	return "https://view.officeapps.live.com/op/embed.aspx?src=" + src
}

func (h *stubHost) UploadPublic(ctx context.Context, name string, data []byte) (string, error) {
	atomic.AddInt32(&h.uploadCalls, 1)
	if h.uploadErr != nil {
		return "", h.uploadErr
	}
	if h.uploadURL != "" {
		return h.uploadURL, nil
	}
	return "https://files.example.com/" + name, nil
}

func newTestManager(host *stubHost, viewerTimeout time.Duration) *Manager {
	conf := &core.Config{
		FrontendBaseURL: "http://localhost:8000",
		Preview: core.PreviewConfig{
			ViewerTimeout: viewerTimeout,
			BlobTTL:       time.Minute,
			MaxRetries:    2,
		},
	}
	return NewManager(conf, host, nopLogger{})
}

func newMaterial(name string, payload []byte) material.Material {
	ct := material.MimeTypeByName(name)
	return material.Material{
		ID:          "m-" + name,
		Name:        name,
		UploadedBy:  "teacher1",
		Size:        int64(len(payload)),
		ContentType: ct,
		Kind:        material.Classify(name, ct),
		Data:        base64.StdEncoding.EncodeToString(payload),
	}
}

func TestManager_Open_inline(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("photo.png", []byte("img")))
	info := s.View()
	assert.Equal(t, StateReady, info.State)
	assert.Equal(t, ViewerInline, info.Viewer)
	assert.NotEmpty(t, info.DataURL)

	// inline previews never reach a remote host
	assert.Zero(t, atomic.LoadInt32(&host.googleCalls))
	assert.Zero(t, atomic.LoadInt32(&host.officeCalls))
	assert.Zero(t, atomic.LoadInt32(&host.uploadCalls))
	assert.Equal(t, 0, mg.Blobs().Len())
}

func TestManager_Open_unknownKindFallsBack(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("mystery.xyz", []byte("x")))
	info := s.View()
	assert.Equal(t, StateFallback, info.State)
	assert.False(t, info.CanRetry)
	assert.NotEmpty(t, info.Message)
	assert.Zero(t, atomic.LoadInt32(&host.uploadCalls))
}

func TestManager_Open_officeDoc(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("essay.docx", []byte("doc")))
	info := s.View()
	assert.Equal(t, StateLoading, info.State)
	assert.Equal(t, ViewerGoogle, info.Viewer)
	assert.Contains(t, info.EmbedURL, "docs.google.com")
	assert.Contains(t, info.EmbedURL, "/v1/blobs/")
	assert.Equal(t, 1, mg.Blobs().Len())

	assert.NoError(t, s.MarkLoaded())
	assert.Equal(t, StateReady, s.View().State)
}

func TestManager_officeDoc_timeoutThenSwitchThenFallback(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, 20*time.Millisecond)

	s := mg.Open(context.Background(), newMaterial("essay.docx", []byte("doc")))

	assert.Eventually(t, func() bool {
		return s.View().State == StateTimedOut
	}, time.Second, 5*time.Millisecond)
	info := s.View()
	assert.True(t, info.CanSwitch)

	assert.NoError(t, s.SwitchViewer())
	info = s.View()
	assert.Equal(t, StateLoading, info.State)
	assert.Equal(t, ViewerOffice, info.Viewer)
	assert.Contains(t, info.EmbedURL, "view.officeapps.live.com")

	// a second timeout drops to download-only; no further switch is offered
	assert.Eventually(t, func() bool {
		return s.View().State == StateFallback
	}, time.Second, 5*time.Millisecond)
	assert.False(t, s.View().CanSwitch)
	assert.Equal(t, ErrNotSwitchable, s.SwitchViewer())
}

func TestManager_officeDoc_loadBeatsTimer(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, 30*time.Millisecond)

	s := mg.Open(context.Background(), newMaterial("grades.xlsx", []byte("xls")))
	assert.NoError(t, s.MarkLoaded())
	assert.Equal(t, StateReady, s.View().State)

	// the stale timer must not fire into the ready state
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateReady, s.View().State)
}

func TestManager_presentation(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("slides.pptx", []byte("ppt")))
	info := s.View()
	assert.Equal(t, StateLoading, info.State)
	assert.Equal(t, ViewerOffice, info.Viewer)
	assert.Contains(t, info.EmbedURL, "files.example.com/slides.pptx")
	assert.Equal(t, int32(1), atomic.LoadInt32(&host.uploadCalls))
}

func TestManager_presentation_uploadFailureIsRetryable(t *testing.T) {
	host := &stubHost{uploadErr: errors.New("host unavailable")}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("slides.pptx", []byte("ppt")))
	info := s.View()
	assert.Equal(t, StateFailed, info.State)
	assert.True(t, info.CanRetry)
	assert.Equal(t, 2, info.RetriesLeft)
	// exactly one upload attempt per pipeline run
	assert.Equal(t, int32(1), atomic.LoadInt32(&host.uploadCalls))

	// the host recovers; a retry re-enters the upload pipeline
	host.uploadErr = nil
	assert.NoError(t, s.Retry(context.Background()))
	info = s.View()
	assert.Equal(t, StateLoading, info.State)
	assert.Equal(t, ViewerOffice, info.Viewer)
	assert.Contains(t, info.EmbedURL, "files.example.com/slides.pptx")
	assert.Equal(t, int32(2), atomic.LoadInt32(&host.uploadCalls))
	assert.Equal(t, 1, info.RetriesLeft)
}

func TestManager_presentation_uploadRetriesRunOut(t *testing.T) {
	host := &stubHost{uploadErr: errors.New("host unavailable")}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("slides.pptx", []byte("ppt")))
	assert.NoError(t, s.Retry(context.Background()))
	assert.NoError(t, s.Retry(context.Background()))

	info := s.View()
	assert.Equal(t, StateFailed, info.State)
	assert.False(t, info.CanRetry)
	assert.Equal(t, ErrNotRetryable, s.Retry(context.Background()))
	// the initial attempt plus the two configured retries
	assert.Equal(t, int32(3), atomic.LoadInt32(&host.uploadCalls))
}

func TestManager_malformedPayloadFailsWithRetry(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	m := newMaterial("essay.docx", nil)
	m.Data = "!!not-base64!!"
	s := mg.Open(context.Background(), m)

	info := s.View()
	assert.Equal(t, StateFailed, info.State)
	assert.True(t, info.CanRetry)
	assert.Equal(t, 2, info.RetriesLeft)

	// the payload stays corrupt, so every retry fails until they run out
	assert.NoError(t, s.Retry(context.Background()))
	assert.NoError(t, s.Retry(context.Background()))
	info = s.View()
	assert.Equal(t, StateFailed, info.State)
	assert.False(t, info.CanRetry)
	assert.Equal(t, ErrNotRetryable, s.Retry(context.Background()))
}

func TestManager_Close(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("essay.docx", []byte("doc")))
	assert.Equal(t, 1, mg.Blobs().Len())

	s.Close()
	assert.Equal(t, StateClosed, s.View().State)
	assert.Equal(t, 0, mg.Blobs().Len())

	_, err := mg.Get(s.ID)
	assert.Equal(t, ErrSessionNotFound, err)

	// closing twice is a no-op
	s.Close()
	assert.Equal(t, ErrSessionClosed, s.MarkLoaded())
}

func TestManager_pdf_opensReady(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("syllabus.pdf", minimalPDF(4)))
	info := s.View()
	assert.Equal(t, StateReady, info.State)
	assert.Equal(t, ViewerPDF, info.Viewer)
	assert.Equal(t, 1, info.Page)
	assert.Equal(t, 4, info.PageCount)

	// rendered locally; no remote host involved
	assert.Zero(t, atomic.LoadInt32(&host.uploadCalls))
	assert.Equal(t, 0, mg.Blobs().Len())

	assert.NoError(t, s.NextPage())
	assert.Equal(t, 2, s.View().Page)

	raw, err := s.ExtractPage()
	assert.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestManager_pdf_garbageFails(t *testing.T) {
	host := &stubHost{}
	mg := newTestManager(host, time.Minute)

	s := mg.Open(context.Background(), newMaterial("broken.pdf", []byte("not a pdf")))
	info := s.View()
	assert.Equal(t, StateFailed, info.State)
	assert.True(t, info.CanRetry)

	_, err := s.ExtractPage()
	assert.Equal(t, ErrNoPDFView, err)
}
