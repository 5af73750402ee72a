package material

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind is the closed classification a material is resolved to exactly once,
// at ingestion. Renderer selection is a total match over this set.
type Kind string

const (
	KindPDF          Kind = "pdf"
	KindWordDoc      Kind = "word-doc"
	KindPresentation Kind = "presentation"
	KindSpreadsheet  Kind = "spreadsheet"
	KindImage        Kind = "image"
	KindVideo        Kind = "video"
	KindAudio        Kind = "audio"
	KindText         Kind = "text"
	KindArchive      Kind = "archive"
	KindOther        Kind = "other"
)

var ErrMalformedPayload = errors.New("malformed payload: not a data URL or decodable base64")

// Material is a single uploaded study material. Name is the unique key
// within the store; uploading an existing name replaces the record.
type Material struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UploadedBy  string    `json:"uploaded_by"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Kind        Kind      `json:"kind"`
	UploadedAt  time.Time `json:"uploaded_at"` // UTC
	Data        string    `json:"data"`        // data URL or raw base64 payload
}

// Bytes decodes the payload. Records failing to decode are corrupt; callers
// treat them as skippable, never fatal to the store.
func (m Material) Bytes() ([]byte, error) {
	payload := m.Data
	if strings.HasPrefix(payload, "data:") {
		i := strings.Index(payload, ",")
		if i < 0 {
			return nil, ErrMalformedPayload
		}
		meta, data := payload[5:i], payload[i+1:]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, ErrMalformedPayload
		}
		payload = data
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	return b, nil
}

// DataURL returns the payload as a data URL, synthesizing the header when the
// stored payload is raw base64.
func (m Material) DataURL() string {
	if strings.HasPrefix(m.Data, "data:") {
		return m.Data
	}
	ct := m.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", ct, m.Data)
}

var (
	wordDocExts      = []string{".doc", ".docx", ".docm", ".rtf", ".odt"}
	presentationExts = []string{".ppt", ".pptx"}
	spreadsheetExts  = []string{".xls", ".xlsx"}
	textExts         = []string{".txt", ".csv", ".json", ".xml", ".md", ".log"}
	archiveExts      = []string{".zip", ".rar", ".7z", ".tar", ".gz"}
	videoExts        = []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm"}
	audioExts        = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac"}
)

// Classify resolves a material name and declared content type to a Kind.
// Images are detected by the declared MIME prefix; everything else by
// extension allow-lists. Unknown extensions classify as KindOther, which is
// a valid state, not an error.
func Classify(name, contentType string) Kind {
	if strings.HasPrefix(contentType, "image/") {
		return KindImage
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".pdf":
		return KindPDF
	case hasExt(wordDocExts, ext):
		return KindWordDoc
	case hasExt(presentationExts, ext):
		return KindPresentation
	case hasExt(spreadsheetExts, ext):
		return KindSpreadsheet
	case hasExt(textExts, ext):
		return KindText
	case hasExt(archiveExts, ext):
		return KindArchive
	case hasExt(videoExts, ext), strings.HasPrefix(contentType, "video/"):
		return KindVideo
	case hasExt(audioExts, ext), strings.HasPrefix(contentType, "audio/"):
		return KindAudio
	default:
		return KindOther
	}
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

var mimeTypesByExt = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".rtf":  "application/rtf",
	".odt":  "application/vnd.oasis.opendocument.text",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".zip":  "application/zip",
	".rar":  "application/x-rar-compressed",
	".7z":   "application/x-7z-compressed",
}

// MimeTypeByName returns the MIME type for a file name, falling back to
// application/octet-stream.
func MimeTypeByName(name string) string {
	if mt, ok := mimeTypesByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return "application/octet-stream"
}
