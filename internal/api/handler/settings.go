package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/api/middleware"
	"github.com/breatheroute/airdash/internal/api/models"
	"github.com/breatheroute/airdash/internal/api/response"
	"github.com/breatheroute/airdash/internal/dashboard"
	"github.com/breatheroute/airdash/internal/export"
	"github.com/breatheroute/airdash/internal/notice"
	"github.com/breatheroute/airdash/internal/settings"
)

// SettingsHandler serves preferences, favorites and storage reset.
type SettingsHandler struct {
	store        *settings.Store
	orchestrator *dashboard.Orchestrator
	notices      notice.Poster
}

// NewSettingsHandler creates a SettingsHandler. Refresh settings are applied
// to the orchestrator as they change.
func NewSettingsHandler(store *settings.Store, o *dashboard.Orchestrator, notices notice.Poster) *SettingsHandler {
	return &SettingsHandler{store: store, orchestrator: o, notices: notices}
}

// GetSettings handles GET /v1/settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, toSettings(h.store.Settings(r.Context())))
}

// PatchSettings handles PATCH /v1/settings. Intervals under the minimum
// refresh period are raised to it.
func (h *SettingsHandler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := response.DecodeJSON(r, &patch); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error(), nil)
		return
	}

	var delim export.Delimiter
	if patch.CSVDelimiter != nil {
		d, ok := export.ParseDelimiter(*patch.CSVDelimiter)
		if !ok {
			response.BadRequest(w, r, "invalid settings", []models.FieldError{{
				Field: "csvDelimiter", Message: settings.ErrInvalidDelimiter.Error(), Code: "INVALID",
			}})
			return
		}
		delim = d
	}

	ctx := r.Context()
	if patch.AutoRefresh != nil {
		if err := h.store.SetAutoRefresh(ctx, *patch.AutoRefresh); err != nil {
			response.InternalError(w, r, err.Error())
			return
		}
	}
	if patch.RefreshIntervalSeconds != nil {
		if _, err := h.store.SetRefreshInterval(ctx, *patch.RefreshIntervalSeconds); err != nil {
			response.InternalError(w, r, err.Error())
			return
		}
	}
	if delim != "" {
		if err := h.store.SetCSVDelimiter(ctx, delim); err != nil {
			response.InternalError(w, r, err.Error())
			return
		}
	}

	current := h.store.Settings(ctx)
	if patch.AutoRefresh != nil || patch.RefreshIntervalSeconds != nil {
		h.orchestrator.SetAutoRefresh(current.AutoRefresh, current.RefreshInterval())
	}
	response.JSON(w, r, http.StatusOK, toSettings(current))
}

// ListFavorites handles GET /v1/favorites.
func (h *SettingsHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites := h.store.Favorites(r.Context())
	list := models.FavoriteList{Favorites: make([]models.Favorite, 0, len(favorites)), Max: settings.MaxFavorites}
	for _, f := range favorites {
		list.Favorites = append(list.Favorites, toFavorite(f))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// AddFavorite handles POST /v1/favorites.
func (h *SettingsHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := response.DecodeJSON(r, &loc); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error(), nil)
		return
	}
	if errs := loc.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid location", errs)
		return
	}

	fav, err := h.store.AddFavorite(r.Context(), toLocation(loc))
	switch {
	case errors.Is(err, settings.ErrDuplicateFavorite):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, settings.ErrInvalidLocation):
		response.BadRequest(w, r, err.Error(), nil)
	case err != nil:
		response.InternalError(w, r, err.Error())
	default:
		response.Created(w, r, "/v1/favorites", toFavorite(fav))
	}
}

// RemoveFavorite handles DELETE /v1/favorites?lat=&lng=. Requires X-Confirm.
func (h *SettingsHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		response.BadRequest(w, r, "lat and lng query parameters are required", nil)
		return
	}

	err := h.store.RemoveFavorite(r.Context(), airquality.Coordinates{Latitude: lat, Longitude: lng}, middleware.Confirmer(r))
	switch {
	case errors.Is(err, notice.ErrUserCancelled):
		h.cancelled(w, r, "Favorite was not removed.")
	case errors.Is(err, settings.ErrFavoriteNotFound):
		response.NotFound(w, r, err.Error())
	case err != nil:
		response.InternalError(w, r, err.Error())
	default:
		response.NoContent(w, r)
	}
}

// ClearStorage handles DELETE /v1/storage. Requires X-Confirm. Auto-refresh
// is switched off since the stored preference is gone.
func (h *SettingsHandler) ClearStorage(w http.ResponseWriter, r *http.Request) {
	err := h.store.ClearAll(r.Context(), middleware.Confirmer(r))
	switch {
	case errors.Is(err, notice.ErrUserCancelled):
		h.cancelled(w, r, "Saved data was not cleared.")
	case err != nil:
		response.InternalError(w, r, err.Error())
	default:
		def := settings.Defaults()
		h.orchestrator.SetAutoRefresh(def.AutoRefresh, def.RefreshInterval())
		response.NoContent(w, r)
	}
}

func (h *SettingsHandler) cancelled(w http.ResponseWriter, r *http.Request, msg string) {
	var id string
	if h.notices != nil {
		id = h.notices.Post(notice.KindUserCancelled, msg).ID
	}
	response.ConfirmationRequired(w, r, "send "+middleware.HeaderConfirm+": true to confirm", id)
}

func toSettings(s settings.Settings) models.Settings {
	return models.Settings{
		AutoRefresh:            s.AutoRefresh,
		RefreshIntervalSeconds: s.RefreshIntervalSeconds,
		CSVDelimiter:           s.CSVDelimiter.Name(),
	}
}

func toFavorite(f settings.Favorite) models.Favorite {
	return models.Favorite{Name: f.Name, Lat: f.Latitude, Lng: f.Longitude, CreatedAt: models.Timestamp(f.CreatedAt)}
}
