package dashboard

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/breatheroute/airdash/internal/airquality"
)

// ShareLink returns base with the location encoded as lat, lng and name
// query parameters. Existing query parameters on base are kept.
func ShareLink(base string, loc airquality.Location) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse share base: %w", err)
	}

	q := u.Query()
	q.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("name", loc.Name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseShareLink reads a location back from share link query parameters.
func ParseShareLink(q url.Values) (airquality.Location, bool) {
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return airquality.Location{}, false
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		return airquality.Location{}, false
	}
	loc := airquality.Location{
		Coordinates: airquality.Coordinates{Latitude: lat, Longitude: lng},
		Name:        q.Get("name"),
	}
	if !loc.Valid() {
		return airquality.Location{}, false
	}
	return loc, true
}
