// Package maptiles selects the basemap tile source, falling back from the
// satellite imagery to OpenStreetMap once the imagery fails.
package maptiles

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/notice"
)

// Source is a slippy-map tile template.
type Source struct {
	Name        string `json:"name"`
	URLTemplate string `json:"urlTemplate"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
}

var (
	// EsriWorldImagery is the primary satellite source.
	EsriWorldImagery = Source{
		Name:        "esri-world-imagery",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri",
		MaxZoom:     19,
	}

	// OpenStreetMap is the fallback street map.
	OpenStreetMap = Source{
		Name:        "openstreetmap",
		URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "© OpenStreetMap contributors",
		MaxZoom:     19,
	}
)

// Switcher serves the primary source until the first reported tile error,
// then the fallback for the rest of its life.
type Switcher struct {
	primary  Source
	fallback Source
	notices  notice.Poster
	logger   zerolog.Logger

	mu         sync.Mutex
	fellBack   bool
	tileErrors int
}

// NewSwitcher creates a switcher over the default sources.
func NewSwitcher(notices notice.Poster, logger zerolog.Logger) *Switcher {
	return &Switcher{
		primary:  EsriWorldImagery,
		fallback: OpenStreetMap,
		notices:  notices,
		logger:   logger,
	}
}

// Current returns the active source and whether it is the fallback.
func (s *Switcher) Current() (Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fellBack {
		return s.fallback, true
	}
	return s.primary, false
}

// ReportTileError records a failed tile load. The first error switches to
// the fallback and posts one notice; it reports whether this call switched.
func (s *Switcher) ReportTileError(source string) bool {
	s.mu.Lock()
	s.tileErrors++
	switched := !s.fellBack && source == s.primary.Name
	if switched {
		s.fellBack = true
	}
	s.mu.Unlock()

	if !switched {
		return false
	}

	s.logger.Warn().Str("source", source).Msg("satellite tiles failed, switching to fallback")
	if s.notices != nil {
		s.notices.Post(notice.KindInfo, "Satellite imagery is unavailable. Showing the street map instead.")
	}
	return true
}

// TileErrors returns how many tile errors were reported.
func (s *Switcher) TileErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tileErrors
}
