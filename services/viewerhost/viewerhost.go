// Package viewerhost talks to the external document viewers and the public
// file host that presentation previews are staged on.
package viewerhost

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core"
	"github.com/GanpatGang/GanpatStudy/core/preview"
)

type Service struct {
	googleViewerURL string
	officeViewerURL string
	publicHostURL   string
	client          *http.Client
	logger          core.Logger
}

var _ preview.ViewerHost = (*Service)(nil)

func NewService(conf *core.Config, logger core.Logger) *Service {
	return &Service{
		googleViewerURL: conf.Preview.GoogleViewerURL,
		officeViewerURL: conf.Preview.OfficeViewerURL,
		publicHostURL:   conf.Preview.PublicHostURL,
		client:          &http.Client{Timeout: 30 * time.Second},
		logger:          logger,
	}
}

func (svc *Service) GoogleEmbedURL(src string) string {
	return svc.googleViewerURL + url.QueryEscape(src)
}

func (svc *Service) OfficeEmbedURL(src string) string {
	return svc.officeViewerURL + url.QueryEscape(src)
}

// uploadResponse covers the field names public file hosts respond with.
type uploadResponse struct {
	URL  string `json:"url"`
	Link string `json:"link"`
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (res uploadResponse) fileURL() string {
	if res.URL != "" {
		return res.URL
	}
	if res.Link != "" {
		return res.Link
	}
	return res.Data.URL
}

// UploadPublic stages the file on the public host and returns its public URL.
func (svc *Service) UploadPublic(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", errors.Wrap(err, "creating form file")
	}
	if _, err = part.Write(data); err != nil {
		return "", errors.Wrap(err, "writing form file")
	}
	if err = w.Close(); err != nil {
		return "", errors.Wrap(err, "closing form writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.publicHostURL, &body)
	if err != nil {
		return "", errors.Wrap(err, "building upload request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "uploading to public host")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", errors.Errorf("public host returned status %d", res.StatusCode)
	}

	resBody, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "reading upload response")
	}
	var parsed uploadResponse
	if err = json.Unmarshal(resBody, &parsed); err != nil {
		return "", errors.Wrap(err, "decoding upload response")
	}
	fileURL := parsed.fileURL()
	if fileURL == "" {
		return "", errors.New("public host returned no file url")
	}
	return fileURL, nil
}
