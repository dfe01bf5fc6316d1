// internal/api/v2/species.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/html"

	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/securefs"
)

const (
	msgBaseDirNotFound = "Base directory not found"
	msgStoreFailure    = "Detection database unavailable, please retry"
	retryAfterSeconds  = "5"
)

// PreviewResponse is what a delete would remove.
type PreviewResponse struct {
	Count int `json:"count"`
	Files int `json:"files"`
}

// DeleteResponse is what a delete removed.
type DeleteResponse struct {
	RowsDeleted  int64 `json:"rows_deleted"`
	FilesDeleted int   `json:"files_deleted"`
}

// legacyDeleteResponse keeps the field names of species_tools.php.
type legacyDeleteResponse struct {
	Lines int64 `json:"lines"`
	Files int   `json:"files"`
}

// initSpeciesRoutes registers the species lifecycle routes.
func (c *Controller) initSpeciesRoutes(limit echo.MiddlewareFunc) {
	c.Group.GET("/species", c.ListSpecies)
	c.Group.GET("/species/preview", c.PreviewSpecies)
	c.Group.POST("/species/delete", c.DeleteSpecies, limit)
	c.Group.POST("/species/lists/:list", c.ToggleSpeciesList, limit)
	c.Group.GET("/species/summary", c.GetSpeciesSummary)
}

// speciesParam reads a query parameter and decodes HTML entities once. The
// decoded value is used verbatim from here on.
func speciesParam(ctx echo.Context, name string) (string, bool) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return "", false
	}
	decoded := html.UnescapeString(raw)
	if strings.TrimSpace(decoded) == "" {
		return "", false
	}
	return decoded, true
}

// handleSpeciesError maps core errors onto status codes: rejected input is
// 400, an unusable storage root 500, a failing detection store 503.
func (c *Controller) handleSpeciesError(ctx echo.Context, err error, message string) error {
	switch {
	case errors.Is(err, securefs.ErrRootUnresolvable):
		// the legacy UI reads this exact text from the error field
		c.logger.WithContext(ctx.Request().Context()).Error("Storage root unavailable", logger.Error(err))
		return c.HandleError(ctx, nil, msgBaseDirNotFound, http.StatusInternalServerError)
	case errors.IsCategory(err, errors.CategoryValidation):
		return c.HandleError(ctx, err, message, http.StatusBadRequest)
	case errors.IsCategory(err, errors.CategoryDatabase):
		ctx.Response().Header().Set("Retry-After", retryAfterSeconds)
		return c.HandleError(ctx, err, msgStoreFailure, http.StatusServiceUnavailable)
	default:
		return c.HandleError(ctx, err, message, http.StatusInternalServerError)
	}
}

// ListSpecies handles GET /api/v2/species
func (c *Controller) ListSpecies(ctx echo.Context) error {
	entries, err := c.Species.Species(ctx.Request().Context())
	if err != nil {
		return c.handleSpeciesError(ctx, err, "Failed to list species")
	}
	return ctx.JSON(http.StatusOK, entries)
}

// PreviewSpecies handles GET /api/v2/species/preview?species=
func (c *Controller) PreviewSpecies(ctx echo.Context) error {
	name, ok := speciesParam(ctx, "species")
	if !ok {
		return c.HandleError(ctx, nil, "Missing species parameter", http.StatusBadRequest)
	}

	targets, err := c.Species.Preview(ctx.Request().Context(), name)
	if err != nil {
		return c.handleSpeciesError(ctx, err, "Failed to preview species")
	}
	return ctx.JSON(http.StatusOK, PreviewResponse{Count: targets.Rows, Files: targets.FileCount()})
}

// DeleteSpecies handles POST /api/v2/species/delete?species=
func (c *Controller) DeleteSpecies(ctx echo.Context) error {
	name, ok := speciesParam(ctx, "species")
	if !ok {
		return c.HandleError(ctx, nil, "Missing species parameter", http.StatusBadRequest)
	}

	result, err := c.Species.Delete(ctx.Request().Context(), name)
	if err != nil {
		return c.handleSpeciesError(ctx, err, "Failed to delete species")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{
		RowsDeleted:  result.RowsDeleted,
		FilesDeleted: result.FilesDeleted,
	})
}

// ToggleSpeciesList handles POST /api/v2/species/lists/:list?species=&action=
func (c *Controller) ToggleSpeciesList(ctx echo.Context) error {
	name, ok := speciesParam(ctx, "species")
	if !ok {
		return c.HandleError(ctx, nil, "Missing species parameter", http.StatusBadRequest)
	}
	action := ctx.QueryParam("action")
	if action == "" {
		return c.HandleError(ctx, nil, "Missing action parameter", http.StatusBadRequest)
	}

	if err := c.Species.ToggleMembership(ctx.Param("list"), name, action); err != nil {
		return c.handleSpeciesError(ctx, err, "Failed to update species list")
	}
	return ctx.String(http.StatusOK, "OK")
}

// GetSpeciesSummary handles GET /api/v2/species/summary
func (c *Controller) GetSpeciesSummary(ctx echo.Context) error {
	summary, err := c.Species.Summary(ctx.Request().Context())
	if err != nil {
		return c.handleSpeciesError(ctx, err, "Failed to summarize species on disk")
	}
	return ctx.JSON(http.StatusOK, summary)
}

// LegacySpeciesTools serves the query interface of species_tools.php:
// toggle+species+action, getcounts and delete.
func (c *Controller) LegacySpeciesTools(ctx echo.Context) error {
	switch {
	case ctx.QueryParam("toggle") != "":
		list := ctx.QueryParam("toggle")
		if list != "exclude" && list != "whitelist" {
			return c.HandleError(ctx, nil, "Unknown list", http.StatusBadRequest)
		}
		ctx.SetParamNames("list")
		ctx.SetParamValues(list)
		return c.ToggleSpeciesList(ctx)

	case ctx.QueryParam("getcounts") != "":
		name, ok := speciesParam(ctx, "getcounts")
		if !ok {
			return c.HandleError(ctx, nil, "Missing species parameter", http.StatusBadRequest)
		}
		targets, err := c.Species.Preview(ctx.Request().Context(), name)
		if err != nil {
			return c.handleSpeciesError(ctx, err, "Failed to count species files")
		}
		return ctx.JSON(http.StatusOK, PreviewResponse{Count: targets.Rows, Files: targets.FileCount()})

	case ctx.QueryParam("delete") != "":
		name, ok := speciesParam(ctx, "delete")
		if !ok {
			return c.HandleError(ctx, nil, "Missing species parameter", http.StatusBadRequest)
		}
		result, err := c.Species.Delete(ctx.Request().Context(), name)
		if err != nil {
			return c.handleSpeciesError(ctx, err, "Failed to delete species")
		}
		return ctx.JSON(http.StatusOK, legacyDeleteResponse{Lines: result.RowsDeleted, Files: result.FilesDeleted})
	}

	return c.HandleError(ctx, nil, "Missing operation parameter", http.StatusBadRequest)
}
