package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core/material"
	"github.com/GanpatGang/GanpatStudy/core/preview"
	"github.com/GanpatGang/GanpatStudy/core/user"
)

type previewApi struct {
	mgr         *preview.Manager
	materialSvc *material.Service
	userSvc     user.Service
}

func registerPreviewAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	mgr *preview.Manager,
	materialSvc *material.Service,
	userSvc user.Service,
) {
	api := previewApi{
		mgr:         mgr,
		materialSvc: materialSvc,
		userSvc:     userSvc,
	}

	// blob URLs are fetched by the remote viewers, not by logged-in clients
	g.GET("/blobs/:token", api.serveBlob)

	pg := g.Group("/previews", jwt)
	pg.POST("", api.open)
	pg.GET("/:id", api.retrieve)
	pg.DELETE("/:id", api.close)
	pg.POST("/:id/loaded", api.markLoaded)
	pg.POST("/:id/switch-viewer", api.switchViewer)
	pg.POST("/:id/retry", api.retry)

	// pdf paging and zoom
	pg.POST("/:id/pages/next", api.nextPage)
	pg.POST("/:id/pages/prev", api.prevPage)
	pg.PUT("/:id/page", api.goToPage)
	pg.PUT("/:id/zoom", api.setZoom)
	pg.POST("/:id/zoom-in", api.zoomIn)
	pg.POST("/:id/zoom-out", api.zoomOut)
	pg.GET("/:id/page.pdf", api.downloadPage)
}

// Handlers

func (api *previewApi) open(ctx echo.Context) error {
	var data OpenPreviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OpenPreviewRequest")
	}

	m, err := api.materialSvc.Get(ctx.Request().Context(), data.Name)
	if err != nil {
		if errors.Cause(err) == material.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting material")
	}

	s := api.mgr.Open(ctx.Request().Context(), m)
	return ctx.JSON(http.StatusCreated, s.View())
}

func (api *previewApi) retrieve(ctx echo.Context) error {
	s, err := api.mgr.Get(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, s.View())
}

func (api *previewApi) close(ctx echo.Context) error {
	if err := api.mgr.Close(ctx.Param("id")); err != nil {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *previewApi) markLoaded(ctx echo.Context) error {
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.MarkLoaded() })
}

func (api *previewApi) switchViewer(ctx echo.Context) error {
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.SwitchViewer() })
}

func (api *previewApi) retry(ctx echo.Context) error {
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.Retry(ctx.Request().Context()) })
}

func (api *previewApi) nextPage(ctx echo.Context) error {
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.NextPage() })
}

func (api *previewApi) prevPage(ctx echo.Context) error {
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.PrevPage() })
}

func (api *previewApi) goToPage(ctx echo.Context) error {
	var data PageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PageRequest")
	}
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.GoToPage(data.Page) })
}

func (api *previewApi) setZoom(ctx echo.Context) error {
	var data ZoomRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ZoomRequest")
	}
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.SetZoom(data.Zoom) })
}

func (api *previewApi) zoomIn(ctx echo.Context) error {
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.ZoomIn() })
}

func (api *previewApi) zoomOut(ctx echo.Context) error {
	return api.sessionOp(ctx, func(s *preview.Session) error { return s.ZoomOut() })
}

func (api *previewApi) downloadPage(ctx echo.Context) error {
	s, err := api.mgr.Get(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	raw, err := s.ExtractPage()
	if err != nil {
		return mapPreviewErr(err)
	}
	return ctx.Blob(http.StatusOK, "application/pdf", raw)
}

func (api *previewApi) serveBlob(ctx echo.Context) error {
	blob, err := api.mgr.Blobs().Get(ctx.Param("token"))
	if err != nil {
		return errHttpNotFound
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+blob.Name+`"`)
	return ctx.Blob(http.StatusOK, blob.ContentType, blob.Data)
}

// sessionOp runs an operation against the session and replies with its
// resulting visible state.
func (api *previewApi) sessionOp(ctx echo.Context, op func(*preview.Session) error) error {
	s, err := api.mgr.Get(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	if err = op(s); err != nil {
		return mapPreviewErr(err)
	}
	return ctx.JSON(http.StatusOK, s.View())
}

func mapPreviewErr(err error) error {
	switch errors.Cause(err) {
	case preview.ErrSessionNotFound:
		return errHttpNotFound
	case preview.ErrSessionClosed:
		return echo.NewHTTPError(http.StatusGone, "preview session is closed")
	case preview.ErrNotRetryable, preview.ErrNotSwitchable, preview.ErrNoPDFView:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

type (
	OpenPreviewRequest struct {
		Name string `json:"name"`
	}

	PageRequest struct {
		Page int `json:"page"`
	}

	ZoomRequest struct {
		Zoom int `json:"zoom"`
	}
)
