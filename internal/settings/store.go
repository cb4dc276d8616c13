// Package settings persists user preferences and favorite locations.
//
// Reads never fail: a missing, unparseable or invalid stored value resolves
// to the caller's default and is logged as storage corruption.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/export"
	"github.com/breatheroute/airdash/internal/notice"
	"github.com/breatheroute/airdash/internal/schedule"
)

// Storage keys.
const (
	KeyAutoRefresh     = "autoRefresh"
	KeyRefreshInterval = "refreshInterval"
	KeyCSVDelimiter    = "csvDelimiter"
	KeyFavorites       = "favorites"
)

const (
	// DefaultRefreshInterval is the auto-refresh period in seconds.
	DefaultRefreshInterval = 60

	// MaxFavorites is how many favorites are kept.
	MaxFavorites = 8
)

var (
	ErrDuplicateFavorite = errors.New("location is already a favorite")
	ErrFavoriteNotFound  = errors.New("favorite not found")
	ErrInvalidDelimiter  = errors.New("csv delimiter must be comma, semicolon or tab")
	ErrInvalidLocation   = errors.New("invalid favorite location")
)

// Settings are the user's dashboard preferences.
type Settings struct {
	AutoRefresh            bool             `json:"autoRefresh"`
	RefreshIntervalSeconds int              `json:"refreshIntervalSeconds"`
	CSVDelimiter           export.Delimiter `json:"csvDelimiter"`
}

// Defaults returns the first-run settings.
func Defaults() Settings {
	return Settings{
		AutoRefresh:            false,
		RefreshIntervalSeconds: DefaultRefreshInterval,
		CSVDelimiter:           export.Comma,
	}
}

// RefreshInterval returns the interval as a duration.
func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// Favorite is a saved location.
type Favorite struct {
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
}

// Coordinates returns the favorite's position.
func (f Favorite) Coordinates() airquality.Coordinates {
	return airquality.Coordinates{Latitude: f.Latitude, Longitude: f.Longitude}
}

// SameLocation compares positions to six decimal places.
func SameLocation(a, b airquality.Coordinates) bool {
	return round6(a.Latitude) == round6(b.Latitude) && round6(a.Longitude) == round6(b.Longitude)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	Storage Storage
	Clock   clockwork.Clock
	Logger  zerolog.Logger
}

// Store reads and writes typed settings over a Storage.
type Store struct {
	storage Storage
	clock   clockwork.Clock
	logger  zerolog.Logger

	// favMu serializes favorite read-modify-write cycles.
	favMu sync.Mutex
}

// NewStore creates a settings store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Store{storage: cfg.Storage, clock: cfg.Clock, logger: cfg.Logger}
}

func (s *Store) raw(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("settings storage read failed")
		return "", false
	}
	return v, ok
}

func (s *Store) corrupt(key, value string, err error) {
	s.logger.Warn().
		Err(err).
		Str("kind", string(notice.KindStorageCorruption)).
		Str("key", key).
		Str("value", value).
		Msg("stored setting is invalid, using default")
}

// GetBool reads a JSON boolean.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	var b bool
	if err := json.Unmarshal([]byte(v), &b); err != nil {
		s.corrupt(key, v, err)
		return def
	}
	return b
}

// GetInt reads a decimal integer.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.corrupt(key, v, err)
		return def
	}
	return n
}

// GetString reads a raw string.
func (s *Store) GetString(ctx context.Context, key, def string) string {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	return v
}

// GetJSON decodes a JSON value into dst and reports whether it succeeded.
// dst is left untouched on failure.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) bool {
	v, ok := s.raw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		s.corrupt(key, v, err)
		return false
	}
	return true
}

// SetBool stores a JSON boolean.
func (s *Store) SetBool(ctx context.Context, key string, v bool) error {
	return s.storage.Set(ctx, key, strconv.FormatBool(v))
}

// SetInt stores a decimal integer.
func (s *Store) SetInt(ctx context.Context, key string, v int) error {
	return s.storage.Set(ctx, key, strconv.Itoa(v))
}

// SetString stores a raw string.
func (s *Store) SetString(ctx context.Context, key, v string) error {
	return s.storage.Set(ctx, key, v)
}

// SetJSON stores v encoded as JSON.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.storage.Set(ctx, key, string(data))
}

// Settings returns the current preferences with defaults filled in.
func (s *Store) Settings(ctx context.Context) Settings {
	def := Defaults()
	out := Settings{
		AutoRefresh:            s.GetBool(ctx, KeyAutoRefresh, def.AutoRefresh),
		RefreshIntervalSeconds: s.GetInt(ctx, KeyRefreshInterval, def.RefreshIntervalSeconds),
		CSVDelimiter:           def.CSVDelimiter,
	}

	if out.RefreshIntervalSeconds <= 0 {
		s.corrupt(KeyRefreshInterval, strconv.Itoa(out.RefreshIntervalSeconds), errors.New("non-positive interval"))
		out.RefreshIntervalSeconds = def.RefreshIntervalSeconds
	}
	out.RefreshIntervalSeconds = clampSeconds(out.RefreshIntervalSeconds)

	raw := s.GetString(ctx, KeyCSVDelimiter, string(def.CSVDelimiter))
	if d, ok := export.ParseDelimiter(raw); ok && raw == string(d) {
		out.CSVDelimiter = d
	} else {
		s.corrupt(KeyCSVDelimiter, raw, ErrInvalidDelimiter)
	}
	return out
}

func clampSeconds(n int) int {
	return int(schedule.Clamp(time.Duration(n)*time.Second) / time.Second)
}

// SetAutoRefresh persists the auto-refresh toggle.
func (s *Store) SetAutoRefresh(ctx context.Context, enabled bool) error {
	return s.SetBool(ctx, KeyAutoRefresh, enabled)
}

// SetRefreshInterval persists the interval, raised to the minimum period.
// It returns the stored value.
func (s *Store) SetRefreshInterval(ctx context.Context, seconds int) (int, error) {
	seconds = clampSeconds(seconds)
	return seconds, s.SetInt(ctx, KeyRefreshInterval, seconds)
}

// SetCSVDelimiter persists the export delimiter.
func (s *Store) SetCSVDelimiter(ctx context.Context, d export.Delimiter) error {
	parsed, ok := export.ParseDelimiter(string(d))
	if !ok {
		return ErrInvalidDelimiter
	}
	return s.SetString(ctx, KeyCSVDelimiter, string(parsed))
}

// Favorites returns saved locations, newest first. Entries with invalid
// coordinates are dropped.
func (s *Store) Favorites(ctx context.Context) []Favorite {
	var stored []Favorite
	if !s.GetJSON(ctx, KeyFavorites, &stored) {
		return []Favorite{}
	}

	out := make([]Favorite, 0, len(stored))
	for _, f := range stored {
		if !validFavorite(f) {
			s.corrupt(KeyFavorites, f.Name, ErrInvalidLocation)
			continue
		}
		out = append(out, f)
	}
	if len(out) > MaxFavorites {
		out = out[:MaxFavorites]
	}
	return out
}

func validFavorite(f Favorite) bool {
	if math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) {
		return false
	}
	return f.Coordinates().Valid()
}

// AddFavorite saves a location at the front of the list, evicting the oldest
// entry beyond MaxFavorites.
func (s *Store) AddFavorite(ctx context.Context, loc airquality.Location) (Favorite, error) {
	fav := Favorite{
		Name:      strings.TrimSpace(loc.Name),
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		CreatedAt: s.clock.Now().UTC(),
	}
	if !validFavorite(fav) {
		return Favorite{}, ErrInvalidLocation
	}

	s.favMu.Lock()
	defer s.favMu.Unlock()

	current := s.Favorites(ctx)
	for _, f := range current {
		if SameLocation(f.Coordinates(), fav.Coordinates()) {
			return Favorite{}, ErrDuplicateFavorite
		}
	}

	next := append([]Favorite{fav}, current...)
	if len(next) > MaxFavorites {
		next = next[:MaxFavorites]
	}
	if err := s.SetJSON(ctx, KeyFavorites, next); err != nil {
		return Favorite{}, err
	}
	return fav, nil
}

// RemoveFavorite deletes the favorite at coords after confirmation.
func (s *Store) RemoveFavorite(ctx context.Context, coords airquality.Coordinates, confirm notice.Confirmer) error {
	s.favMu.Lock()
	defer s.favMu.Unlock()

	current := s.Favorites(ctx)
	idx := -1
	for i, f := range current {
		if SameLocation(f.Coordinates(), coords) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrFavoriteNotFound
	}

	if !confirm.Confirm(ctx, fmt.Sprintf("Remove %s from favorites?", current[idx].Name)) {
		return notice.ErrUserCancelled
	}

	next := append(current[:idx:idx], current[idx+1:]...)
	return s.SetJSON(ctx, KeyFavorites, next)
}

// ClearAll wipes every stored key, favorites included, after confirmation.
// Settings read back as Defaults afterwards.
func (s *Store) ClearAll(ctx context.Context, confirm notice.Confirmer) error {
	if !confirm.Confirm(ctx, "Clear all saved settings and favorites?") {
		return notice.ErrUserCancelled
	}

	s.favMu.Lock()
	defer s.favMu.Unlock()
	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	s.logger.Info().Msg("settings cleared")
	return nil
}
