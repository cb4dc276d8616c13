package handler

import (
	"net/http"

	"github.com/breatheroute/airdash/internal/api/models"
	"github.com/breatheroute/airdash/internal/api/response"
	"github.com/breatheroute/airdash/internal/maptiles"
)

// MapHandler serves the basemap tile source.
type MapHandler struct {
	switcher *maptiles.Switcher
}

// NewMapHandler creates a MapHandler.
func NewMapHandler(switcher *maptiles.Switcher) *MapHandler {
	return &MapHandler{switcher: switcher}
}

// Tiles handles GET /v1/map/tiles.
func (h *MapHandler) Tiles(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.current())
}

// ReportTileError handles POST /v1/map/tiles/errors and answers with the
// source to use from now on.
func (h *MapHandler) ReportTileError(w http.ResponseWriter, r *http.Request) {
	var req models.TileErrorReport
	if err := response.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error(), nil)
		return
	}
	if req.Source == "" {
		response.BadRequest(w, r, "invalid tile error report", []models.FieldError{{
			Field: "source", Message: "source is required", Code: "REQUIRED",
		}})
		return
	}

	h.switcher.ReportTileError(req.Source)
	response.JSON(w, r, http.StatusOK, h.current())
}

func (h *MapHandler) current() models.TileSource {
	src, fallback := h.switcher.Current()
	return models.TileSource{
		Name:        src.Name,
		URLTemplate: src.URLTemplate,
		Attribution: src.Attribution,
		MaxZoom:     src.MaxZoom,
		Fallback:    fallback,
		TileErrors:  h.switcher.TileErrors(),
	}
}
