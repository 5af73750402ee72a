package preview

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core/material"
)

// State is the single visible state of a preview session. Every transition
// replaces it wholesale; a session is never in two states at once.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateTimedOut State = "timed-out" // viewer never reported; a switch is offered
	StateFailed   State = "failed"    // error panel, possibly retryable
	StateFallback State = "fallback"  // no preview, download only
	StateClosed   State = "closed"
)

// Viewer identifies what is rendering the session.
type Viewer string

const (
	ViewerNone   Viewer = ""
	ViewerInline Viewer = "inline"
	ViewerPDF    Viewer = "pdf"
	ViewerGoogle Viewer = "google"
	ViewerOffice Viewer = "office"
)

var (
	ErrSessionNotFound = errors.New("preview session not found")
	ErrSessionClosed   = errors.New("preview session is closed")
	ErrNotRetryable    = errors.New("preview is not retryable")
	ErrNotSwitchable   = errors.New("no alternate viewer to switch to")
	ErrNoPDFView       = errors.New("session has no pdf view")
)

// Session is a single open preview. Its state machine is guarded by mu; the
// generation counter invalidates timer callbacks scheduled before a
// transition, so a stale timeout can never fire into a newer state.
type Session struct {
	ID       string
	Material material.Material

	mgr *Manager

	mu          sync.Mutex
	state       State
	viewer      Viewer
	embedURL    string
	blobToken   string
	publicURL   string
	pdf         *PDFView
	message     string
	retriesLeft int
	switched    bool
	gen         uint64
	timer       *time.Timer
}

// ViewInfo is the wire descriptor of a session's visible state.
type ViewInfo struct {
	SessionID   string        `json:"session_id"`
	Name        string        `json:"name"`
	Kind        material.Kind `json:"kind"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
	State       State         `json:"state"`
	Viewer      Viewer        `json:"viewer,omitempty"`
	EmbedURL    string        `json:"embed_url,omitempty"`
	BlobURL     string        `json:"blob_url,omitempty"`
	DataURL     string        `json:"data_url,omitempty"`
	Page        int           `json:"page,omitempty"`
	PageCount   int           `json:"page_count,omitempty"`
	Zoom        int           `json:"zoom,omitempty"`
	CanSwitch   bool          `json:"can_switch"`
	CanRetry    bool          `json:"can_retry"`
	RetriesLeft int           `json:"retries_left"`
	Message     string        `json:"message,omitempty"`
}

func (s *Session) View() ViewInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := ViewInfo{
		SessionID:   s.ID,
		Name:        s.Material.Name,
		Kind:        s.Material.Kind,
		ContentType: s.Material.ContentType,
		Size:        s.Material.Size,
		State:       s.state,
		Viewer:      s.viewer,
		EmbedURL:    s.embedURL,
		CanSwitch:   s.canSwitchLocked(),
		CanRetry:    s.canRetryLocked(),
		RetriesLeft: s.retriesLeft,
		Message:     s.message,
	}
	if s.blobToken != "" {
		info.BlobURL = s.mgr.blobURL(s.blobToken)
	}
	if s.viewer == ViewerInline && s.state == StateReady {
		info.DataURL = s.Material.DataURL()
	}
	if s.pdf != nil && s.state == StateReady {
		info.Page = s.pdf.Page
		info.PageCount = s.pdf.PageCount
		info.Zoom = s.pdf.Zoom
	}
	return info
}

// MarkLoaded confirms the remote viewer rendered the document. It is a no-op
// unless a viewer is currently loading or has just timed out.
func (s *Session) MarkLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateLoading, StateTimedOut:
		s.transitionLocked(StateReady, "")
		return nil
	default:
		return nil
	}
}

// SwitchViewer swaps the office document between remote viewer backends and
// restarts the load timer. Only one switch is allowed per session; a timeout
// after a switch falls back to download-only.
func (s *Session) SwitchViewer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if !s.canSwitchLocked() {
		return ErrNotSwitchable
	}

	src := s.publicURL
	if src == "" {
		src = s.mgr.blobURL(s.blobToken)
	}
	if s.viewer == ViewerGoogle {
		s.viewer = ViewerOffice
		s.embedURL = s.mgr.host.OfficeEmbedURL(src)
	} else {
		s.viewer = ViewerGoogle
		s.embedURL = s.mgr.host.GoogleEmbedURL(src)
	}
	s.switched = true
	s.transitionLocked(StateLoading, "")
	s.startViewerTimerLocked()
	return nil
}

// Retry reruns the preview pipeline after a failure, until retries run out.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.canRetryLocked() {
		s.mu.Unlock()
		return ErrNotRetryable
	}
	s.retriesLeft--
	s.switched = false
	s.transitionLocked(StateLoading, "")
	s.mu.Unlock()

	s.mgr.start(ctx, s)
	return nil
}

// Close tears the session down: pending timers are invalidated and the blob
// token revoked. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	token := s.blobToken
	s.blobToken = ""
	s.transitionLocked(StateClosed, "")
	s.mu.Unlock()

	if token != "" {
		s.mgr.blobs.Revoke(token)
	}
	s.mgr.remove(s.ID)
}

// NextPage, PrevPage, GoToPage, SetZoom, ZoomIn, ZoomOut and ExtractPage
// operate on a ready PDF session.

func (s *Session) NextPage() error { return s.withPDF(func(v *PDFView) { v.Next() }) }
func (s *Session) PrevPage() error { return s.withPDF(func(v *PDFView) { v.Prev() }) }

func (s *Session) GoToPage(page int) error {
	return s.withPDF(func(v *PDFView) { v.GoTo(page) })
}

func (s *Session) SetZoom(zoom int) error {
	return s.withPDF(func(v *PDFView) { v.SetZoom(zoom) })
}

func (s *Session) ZoomIn() error  { return s.withPDF(func(v *PDFView) { v.ZoomIn() }) }
func (s *Session) ZoomOut() error { return s.withPDF(func(v *PDFView) { v.ZoomOut() }) }

func (s *Session) ExtractPage() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, ErrSessionClosed
	}
	if s.pdf == nil || s.state != StateReady {
		return nil, ErrNoPDFView
	}
	return s.pdf.ExtractPage()
}

func (s *Session) withPDF(fn func(*PDFView)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.pdf == nil || s.state != StateReady {
		return ErrNoPDFView
	}
	fn(s.pdf)
	return nil
}

func (s *Session) canSwitchLocked() bool {
	if s.switched {
		return false
	}
	if s.viewer != ViewerGoogle && s.viewer != ViewerOffice {
		return false
	}
	return s.state == StateLoading || s.state == StateTimedOut
}

func (s *Session) canRetryLocked() bool {
	return s.state == StateFailed && s.retriesLeft > 0
}

// transitionLocked replaces the visible state and bumps the generation so any
// timer scheduled before it can no longer fire.
func (s *Session) transitionLocked(state State, message string) {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = state
	s.message = message
}

func (s *Session) startViewerTimerLocked() {
	gen := s.gen
	s.timer = time.AfterFunc(s.mgr.cfg.ViewerTimeout, func() { s.onViewerTimeout(gen) })
}

func (s *Session) onViewerTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != StateLoading {
		return
	}
	if s.switched {
		s.transitionLocked(StateFallback, "The document preview is taking too long. You can download the file instead.")
		return
	}
	s.transitionLocked(StateTimedOut, "The viewer is taking longer than expected. Try switching to a different viewer.")
}
