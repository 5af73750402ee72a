package echoapi

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core/material"
	"github.com/GanpatGang/GanpatStudy/core/user"
)

type materialApi struct {
	svc      *material.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerMaterialAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *material.Service,
	userSvc user.Service,
	validate *validator.Validate,
) {
	api := materialApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	mg := g.Group("/materials", jwt)
	mg.GET("", api.list)
	mg.POST("", api.upload, teacherMiddleware())
	mg.GET("/:name", api.retrieve)
	mg.GET("/:name/download", api.download)
	mg.DELETE("/:name", api.destroy, teacherMiddleware())
}

// MaterialInfo is a Material without its payload, for listings.
type MaterialInfo struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	UploadedBy  string        `json:"uploaded_by"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type"`
	Kind        material.Kind `json:"kind"`
	UploadedAt  time.Time     `json:"uploaded_at"`
}

func newMaterialInfo(m material.Material) MaterialInfo {
	return MaterialInfo{
		ID:          m.ID,
		Name:        m.Name,
		UploadedBy:  m.UploadedBy,
		Size:        m.Size,
		ContentType: m.ContentType,
		Kind:        m.Kind,
		UploadedAt:  m.UploadedAt,
	}
}

// Handlers

func (api *materialApi) list(ctx echo.Context) error {
	records, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing materials")
	}
	infos := make([]MaterialInfo, 0, len(records))
	for _, m := range records {
		infos = append(infos, newMaterialInfo(m))
	}
	return ctx.JSON(http.StatusOK, infos)
}

// upload accepts either a multipart form with a "file" part or a JSON body
// carrying a data-URL payload.
func (api *materialApi) upload(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data material.NewMaterial
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		data, err = api.bindMultipart(ctx)
		if err != nil {
			return err
		}
	} else {
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewMaterial")
		}
	}
	data.UploadedBy = ctxUsr.Username

	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Upload(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "uploading material")
	}
	return ctx.JSON(http.StatusCreated, newMaterialInfo(m))
}

func (api *materialApi) bindMultipart(ctx echo.Context) (material.NewMaterial, error) {
	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return material.NewMaterial{}, errors.Wrap(err, "reading form file")
	}
	f, err := fileHdr.Open()
	if err != nil {
		return material.NewMaterial{}, errors.Wrap(err, "opening form file")
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return material.NewMaterial{}, errors.Wrap(err, "reading form file")
	}
	return material.NewMaterial{
		Name:        fileHdr.Filename,
		ContentType: fileHdr.Header.Get(echo.HeaderContentType),
		Data:        base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	m, err := api.svc.Get(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		if errors.Cause(err) == material.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting material")
	}
	return ctx.JSON(http.StatusOK, newMaterialInfo(m))
}

func (api *materialApi) download(ctx echo.Context) error {
	m, err := api.svc.Get(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		if errors.Cause(err) == material.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting material")
	}

	raw, err := m.Bytes()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "stored file is corrupted")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+m.Name+`"`)
	return ctx.Blob(http.StatusOK, m.ContentType, raw)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	removed, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		if errors.Cause(err) == material.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting material")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: removed})
}

type DeletedResponse struct {
	Deleted int `json:"deleted"`
}
