package handler

import (
	"net/http"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/api/models"
	"github.com/breatheroute/airdash/internal/api/response"
	"github.com/breatheroute/airdash/internal/dashboard"
	"github.com/breatheroute/airdash/internal/export"
)

// DashboardHandler serves the dashboard view and its actions.
type DashboardHandler struct {
	orchestrator *dashboard.Orchestrator
	resolver     airquality.Resolver
	shareBase    string
}

// NewDashboardHandler creates a DashboardHandler. resolver renders
// placeholder values for pollutants the upstream did not report.
func NewDashboardHandler(o *dashboard.Orchestrator, resolver airquality.Resolver, shareBase string) *DashboardHandler {
	if resolver == nil {
		resolver = airquality.NewResolver()
	}
	return &DashboardHandler{orchestrator: o, resolver: resolver, shareBase: shareBase}
}

// GetDashboard handles GET /v1/dashboard. When the query carries a share
// link's lat, lng and name the dashboard opens that location first.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("lat") || q.Has("lng") {
		loc, ok := dashboard.ParseShareLink(q)
		if !ok {
			response.BadRequest(w, r, "invalid shared location", []models.FieldError{{
				Field: "lat,lng", Message: "lat and lng must be valid coordinates", Code: "INVALID",
			}})
			return
		}
		if loc.Coordinates != h.orchestrator.Location().Coordinates {
			h.orchestrator.SetLocation(r.Context(), loc)
		}
	}
	response.JSON(w, r, http.StatusOK, h.view())
}

// Fetch handles POST /v1/dashboard/fetch. With a location in the body the
// dashboard moves there; otherwise the current location is refetched. The
// call returns once the fetch has settled, successful or not.
func (h *DashboardHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	var req models.FetchRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error(), nil)
		return
	}

	if req.Location != nil {
		if errs := req.Location.Validate(); len(errs) > 0 {
			response.BadRequest(w, r, "invalid location", errs)
			return
		}
		h.orchestrator.SetLocation(r.Context(), toLocation(*req.Location))
	} else {
		h.orchestrator.TriggerFetch(r.Context(), h.orchestrator.Location(), req.Silent)
	}

	response.JSON(w, r, http.StatusOK, h.view())
}

// DismissHazard handles POST /v1/dashboard/hazard/dismiss.
func (h *DashboardHandler) DismissHazard(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.DismissHazard()
	response.NoContent(w, r)
}

// Share handles GET /v1/dashboard/share.
func (h *DashboardHandler) Share(w http.ResponseWriter, r *http.Request) {
	loc := h.orchestrator.Location()
	link, err := dashboard.ShareLink(h.shareBase, loc)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	response.JSON(w, r, http.StatusOK, models.ShareLink{URL: link, Location: fromLocation(loc)})
}

func (h *DashboardHandler) view() models.Dashboard {
	snap := h.orchestrator.Snapshot()

	view := models.Dashboard{
		State:           string(snap.State),
		Spinner:         snap.Spinner,
		Location:        fromLocation(snap.Location),
		Series:          snap.Series,
		Status:          snap.Status,
		HazardAlert:     snap.HazardAlert,
		LastUpdated:     models.TimestampPtr(snap.LastUpdated),
		LastOutcome:     string(snap.LastOutcome),
		LastError:       snap.LastError,
		AutoRefresh:     snap.AutoRefresh,
		RefreshInterval: int(snap.RefreshInterval.Seconds()),
	}
	if view.Series.Points == nil {
		view.Series.Points = []airquality.HourlyPoint{}
	}

	if snap.Reading != nil {
		display := airquality.Resolved(snap.Reading.Pollutants, h.resolver)
		for _, key := range airquality.AllPollutants() {
			_, measured := snap.Reading.Pollutants.Value(key)
			view.Pollutants = append(view.Pollutants, models.PollutantCard{
				Key:       string(key),
				Value:     display[key],
				Unit:      export.Unit(key),
				Estimated: !measured,
			})
		}
	}
	return view
}

func toLocation(l models.Location) airquality.Location {
	return airquality.Location{
		Coordinates: airquality.Coordinates{Latitude: l.Lat, Longitude: l.Lng},
		Name:        l.Name,
	}
}

func fromLocation(l airquality.Location) models.Location {
	return models.Location{Name: l.Name, Lat: l.Latitude, Lng: l.Longitude}
}
