package handler

import (
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/breatheroute/airdash/internal/api/models"
	"github.com/breatheroute/airdash/internal/api/response"
	"github.com/breatheroute/airdash/internal/geocoding"
)

// maxSearchSessions bounds the per-client debounce state kept in memory.
const maxSearchSessions = 1024

// GeocodeHandler serves location search.
type GeocodeHandler struct {
	searcher *geocoding.Searcher
	sessions *lru.Cache[string, *geocoding.Searcher]
}

// NewGeocodeHandler creates a GeocodeHandler.
func NewGeocodeHandler(s *geocoding.Searcher) *GeocodeHandler {
	sessions, _ := lru.New[string, *geocoding.Searcher](maxSearchSessions)
	return &GeocodeHandler{searcher: s, sessions: sessions}
}

// Search handles GET /v1/geocode?q=[&session=]. Without a session the lookup
// runs at once. With one, keystrokes from the same session are debounced and
// a request replaced by a newer one answers with superseded set. Queries of
// two characters or fewer return no results, as do upstream failures.
func (h *GeocodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	session := r.URL.Query().Get("session")

	var found []geocoding.Candidate
	superseded := false
	if session == "" {
		found = h.searcher.Search(r.Context(), q)
	} else {
		var ok bool
		found, ok = h.session(session).Await(r.Context(), q)
		superseded = !ok
	}

	results := models.GeocodeResults{Query: q, Results: []models.GeocodeCandidate{}, Superseded: superseded}
	for _, c := range found {
		results.Results = append(results.Results, models.GeocodeCandidate{
			ID:          c.ID,
			Name:        c.Name,
			DisplayName: c.DisplayName(),
			Admin1:      c.Admin1,
			Country:     c.Country,
			Lat:         c.Latitude,
			Lng:         c.Longitude,
		})
	}
	response.JSON(w, r, http.StatusOK, results)
}

func (h *GeocodeHandler) session(id string) *geocoding.Searcher {
	if s, ok := h.sessions.Get(id); ok {
		return s
	}
	s := h.searcher.Session()
	if prev, ok, _ := h.sessions.PeekOrAdd(id, s); ok {
		return prev
	}
	return s
}
