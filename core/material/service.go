package material

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core"
)

var ErrNotFound = errors.New("material not found")

type (
	// Store persists the material list as a whole: Save overwrites the full
	// list, Load returns it, or an empty list if absent or corrupt. The store
	// is a local cache, not a system of record.
	Store interface {
		Load() ([]Material, error)
		Save(records []Material) error
	}

	Service struct {
		mu      sync.Mutex // serializes all read-modify-write cycles on the store
		store   Store
		maxSize int64
		logger  core.Logger
	}
)

func NewService(store Store, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		store:   store,
		maxSize: conf.Material.MaxUploadSize,
		logger:  logger,
	}
}

// NewMaterial contains information needed to ingest a new Material.
type NewMaterial struct {
	Name        string `json:"name" validate:"required"`
	UploadedBy  string `json:"uploaded_by" validate:"required"`
	ContentType string `json:"content_type"`
	Data        string `json:"data" validate:"required"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.UploadedBy = core.CleanString(nm.UploadedBy)
	return validate.Struct(nm)
}

// Upload ingests a material: the payload is decoded once to check
// well-formedness and measure size, the kind is resolved once, and the store
// mutation runs under the service lock so concurrent uploads can never lose
// each other's records. An existing record with the same name is replaced.
func (svc *Service) Upload(ctx context.Context, nm NewMaterial) (Material, error) {
	if nm.ContentType == "" {
		nm.ContentType = MimeTypeByName(nm.Name)
	}

	m := Material{
		ID:          uuid.New().String(),
		Name:        nm.Name,
		UploadedBy:  nm.UploadedBy,
		ContentType: nm.ContentType,
		Kind:        Classify(nm.Name, nm.ContentType),
		UploadedAt:  time.Now().UTC(),
		Data:        nm.Data,
	}

	raw, err := m.Bytes()
	if err != nil {
		return Material{}, core.NewValidationError(err, core.FieldError{Field: "data", Error: err.Error()})
	}
	m.Size = int64(len(raw))
	if svc.maxSize > 0 && m.Size > svc.maxSize {
		return Material{}, core.NewValidationError(
			errors.New("file too large"),
			core.FieldError{Field: "data", Error: "file exceeds the maximum upload size"},
		)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	records, err := svc.store.Load()
	if err != nil {
		return Material{}, errors.Wrap(err, "loading material store")
	}
	replaced := false
	for i := range records {
		if records[i].Name == m.Name {
			records[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, m)
	}
	if err = svc.store.Save(records); err != nil {
		return Material{}, errors.Wrap(err, "saving material store")
	}
	return m, nil
}

func (svc *Service) List(ctx context.Context) ([]Material, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.store.Load()
}

func (svc *Service) Get(ctx context.Context, name string) (Material, error) {
	records, err := svc.List(ctx)
	if err != nil {
		return Material{}, err
	}
	for _, m := range records {
		if m.Name == name {
			return m, nil
		}
	}
	return Material{}, ErrNotFound
}

// Delete removes every record whose name matches exactly and reports how many
// were removed.
func (svc *Service) Delete(ctx context.Context, name string) (int, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	records, err := svc.store.Load()
	if err != nil {
		return 0, errors.Wrap(err, "loading material store")
	}
	kept := records[:0]
	removed := 0
	for _, m := range records {
		if m.Name == name {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	if removed == 0 {
		return 0, ErrNotFound
	}
	if err = svc.store.Save(kept); err != nil {
		return 0, errors.Wrap(err, "saving material store")
	}
	return removed, nil
}
