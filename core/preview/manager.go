package preview

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/GanpatGang/GanpatStudy/core"
	"github.com/GanpatGang/GanpatStudy/core/material"
)

// ViewerHost abstracts the remote document viewers and the public file host
// used for presentations.
type ViewerHost interface {
	GoogleEmbedURL(src string) string
	OfficeEmbedURL(src string) string
	UploadPublic(ctx context.Context, name string, data []byte) (string, error)
}

// Manager opens preview sessions and owns the shared blob registry. Opening
// never fails with an error for a bad document; failures surface as session
// states so the caller always gets a session to render.
type Manager struct {
	cfg     core.PreviewConfig
	baseURL string
	blobs   *BlobStore
	host    ViewerHost
	logger  core.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(conf *core.Config, host ViewerHost, logger core.Logger) *Manager {
	return &Manager{
		cfg:      conf.Preview,
		baseURL:  strings.TrimSuffix(conf.FrontendBaseURL, "/"),
		blobs:    NewBlobStore(conf.Preview.BlobTTL, logger),
		host:     host,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (mg *Manager) Blobs() *BlobStore { return mg.blobs }

// Open creates a session for the material and runs the preview pipeline once.
func (mg *Manager) Open(ctx context.Context, m material.Material) *Session {
	s := &Session{
		ID:          uuid.New().String(),
		Material:    m,
		mgr:         mg,
		state:       StateLoading,
		retriesLeft: mg.cfg.MaxRetries,
	}

	mg.mu.Lock()
	mg.sessions[s.ID] = s
	mg.mu.Unlock()

	mg.start(ctx, s)
	return s
}

func (mg *Manager) Get(id string) (*Session, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	s, ok := mg.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears down a session by ID.
func (mg *Manager) Close(id string) error {
	s, err := mg.Get(id)
	if err != nil {
		return err
	}
	s.Close()
	return nil
}

// CloseAll tears down every open session, for shutdown.
func (mg *Manager) CloseAll() {
	mg.mu.Lock()
	sessions := make([]*Session, 0, len(mg.sessions))
	for _, s := range mg.sessions {
		sessions = append(sessions, s)
	}
	mg.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (mg *Manager) remove(id string) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	delete(mg.sessions, id)
}

func (mg *Manager) blobURL(token string) string {
	return mg.baseURL + "/v1/blobs/" + token
}

// start runs the pipeline for the session's material kind. Inline kinds are
// ready immediately and never touch a remote host; office documents go to a
// remote viewer over a blob URL; presentations are uploaded to the public
// host first; everything else falls back to download-only.
func (mg *Manager) start(ctx context.Context, s *Session) {
	m := s.Material

	switch m.Kind {
	case material.KindImage, material.KindVideo, material.KindAudio, material.KindText:
		s.mu.Lock()
		s.viewer = ViewerInline
		s.transitionLocked(StateReady, "")
		s.mu.Unlock()

	case material.KindPDF:
		mg.startPDF(s)

	case material.KindWordDoc, material.KindSpreadsheet:
		mg.startOfficeDoc(s)

	case material.KindPresentation:
		mg.startPresentation(ctx, s)

	default:
		s.mu.Lock()
		s.viewer = ViewerNone
		s.transitionLocked(StateFallback, "Preview is not available for this file type. You can download it instead.")
		s.mu.Unlock()
	}
}

func (mg *Manager) startPDF(s *Session) {
	raw, err := s.Material.Bytes()
	if err != nil {
		mg.fail(s, "The document could not be read. It may be corrupted.")
		return
	}
	view, err := newPDFView(raw)
	if err != nil {
		mg.logger.Warn("rendering pdf preview", err)
		mg.fail(s, "The PDF could not be rendered.")
		return
	}

	s.mu.Lock()
	s.viewer = ViewerPDF
	s.pdf = view
	s.transitionLocked(StateReady, "")
	s.mu.Unlock()
}

func (mg *Manager) startOfficeDoc(s *Session) {
	raw, err := s.Material.Bytes()
	if err != nil {
		mg.fail(s, "The document could not be read. It may be corrupted.")
		return
	}
	blob := mg.blobs.Put(s.Material.Name, s.Material.ContentType, raw)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		mg.blobs.Revoke(blob.Token)
		return
	}
	s.blobToken = blob.Token
	s.viewer = ViewerGoogle
	s.embedURL = mg.host.GoogleEmbedURL(mg.blobURL(blob.Token))
	s.transitionLocked(StateLoading, "")
	s.startViewerTimerLocked()
	s.mu.Unlock()
}

func (mg *Manager) startPresentation(ctx context.Context, s *Session) {
	raw, err := s.Material.Bytes()
	if err != nil {
		mg.fail(s, "The document could not be read. It may be corrupted.")
		return
	}

	// One attempt per pipeline run; the user retries via the error panel
	// until the session's retries run out.
	publicURL, err := mg.host.UploadPublic(ctx, s.Material.Name, raw)
	if err != nil {
		mg.logger.Warn("uploading presentation to public host", err)
		mg.fail(s, "The presentation could not be uploaded for preview. Please try again.")
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.publicURL = publicURL
	s.viewer = ViewerOffice
	s.embedURL = mg.host.OfficeEmbedURL(publicURL)
	s.transitionLocked(StateLoading, "")
	s.startViewerTimerLocked()
	s.mu.Unlock()
}

func (mg *Manager) fail(s *Session, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.viewer = ViewerNone
	s.transitionLocked(StateFailed, message)
}
