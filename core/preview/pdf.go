package preview

import (
	"bytes"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

// ZoomLevels are the only zoom percentages a PDF view can hold.
var ZoomLevels = []int{50, 75, 100, 125, 150, 200}

const defaultZoom = 100

// PDFView is the paging and zoom state of a rendered PDF. The page is always
// clamped to [1, PageCount]; the zoom always one of ZoomLevels.
type PDFView struct {
	raw       []byte
	Page      int
	PageCount int
	Zoom      int
}

func newPDFView(raw []byte) (*PDFView, error) {
	count, err := api.PageCount(bytes.NewReader(raw), nil)
	if err != nil {
		return nil, errors.Wrap(err, "counting pdf pages")
	}
	if count < 1 {
		return nil, errors.New("pdf has no pages")
	}
	return &PDFView{raw: raw, Page: 1, PageCount: count, Zoom: defaultZoom}, nil
}

func (v *PDFView) GoTo(page int) {
	if page < 1 {
		page = 1
	}
	if page > v.PageCount {
		page = v.PageCount
	}
	v.Page = page
}

func (v *PDFView) Next() { v.GoTo(v.Page + 1) }
func (v *PDFView) Prev() { v.GoTo(v.Page - 1) }

// SetZoom snaps to the nearest allowed level.
func (v *PDFView) SetZoom(zoom int) {
	nearest := ZoomLevels[0]
	for _, lvl := range ZoomLevels {
		if abs(lvl-zoom) < abs(nearest-zoom) {
			nearest = lvl
		}
	}
	v.Zoom = nearest
}

func (v *PDFView) ZoomIn() {
	for _, lvl := range ZoomLevels {
		if lvl > v.Zoom {
			v.Zoom = lvl
			return
		}
	}
}

func (v *PDFView) ZoomOut() {
	for i := len(ZoomLevels) - 1; i >= 0; i-- {
		if ZoomLevels[i] < v.Zoom {
			v.Zoom = ZoomLevels[i]
			return
		}
	}
}

// ExtractPage returns a single-page PDF document for the current page.
func (v *PDFView) ExtractPage() ([]byte, error) {
	var buf bytes.Buffer
	err := api.Trim(bytes.NewReader(v.raw), &buf, []string{strconv.Itoa(v.Page)}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "extracting pdf page %d", v.Page)
	}
	return buf.Bytes(), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
