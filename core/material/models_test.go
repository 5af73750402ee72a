package material

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        Kind
	}{
		{"Lecture 1.pdf", "application/pdf", KindPDF},
		{"notes.PDF", "", KindPDF},
		{"essay.docx", "", KindWordDoc},
		{"essay.doc", "application/msword", KindWordDoc},
		{"handout.rtf", "", KindWordDoc},
		{"handout.odt", "", KindWordDoc},
		{"slides.pptx", "", KindPresentation},
		{"slides.ppt", "", KindPresentation},
		{"grades.xlsx", "", KindSpreadsheet},
		{"grades.xls", "", KindSpreadsheet},
		{"photo.png", "image/png", KindImage},
		{"photo", "image/jpeg", KindImage}, // MIME wins even without an extension
		{"readme.txt", "", KindText},
		{"data.csv", "text/csv", KindText},
		{"archive.zip", "", KindArchive},
		{"lecture.mp4", "", KindVideo},
		{"stream", "video/webm", KindVideo},
		{"podcast.mp3", "", KindAudio},
		{"mystery.xyz", "", KindOther},
		{"noextension", "", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name, tt.contentType))
		})
	}
}

func TestMaterial_Bytes(t *testing.T) {
	raw := []byte("hello world")
	enc := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		data    string
		want    []byte
		wantErr error
	}{
		{"data url", "data:text/plain;base64," + enc, raw, nil},
		{"raw base64", enc, raw, nil},
		{"data url without comma", "data:text/plain;base64", nil, ErrMalformedPayload},
		{"data url not base64-tagged", "data:text/plain," + enc, nil, ErrMalformedPayload},
		{"garbage", "!!not-base64!!", nil, ErrMalformedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Material{Data: tt.data}.Bytes()
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaterial_DataURL(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("x"))

	m := Material{ContentType: "application/pdf", Data: enc}
	assert.Equal(t, "data:application/pdf;base64,"+enc, m.DataURL())

	m = Material{Data: "data:application/pdf;base64," + enc}
	assert.Equal(t, "data:application/pdf;base64,"+enc, m.DataURL())

	m = Material{Data: enc}
	assert.Equal(t, "data:application/octet-stream;base64,"+enc, m.DataURL())
}

func TestMimeTypeByName(t *testing.T) {
	assert.Equal(t, "application/pdf", MimeTypeByName("Lecture.pdf"))
	assert.Equal(t, "image/jpeg", MimeTypeByName("photo.JPG"))
	assert.Equal(t, "application/octet-stream", MimeTypeByName("mystery.xyz"))
}
