package advisor

import (
	"regexp"
	"strconv"

	"github.com/m3rciful/agrobot/internal/domain"
)

// Accepted typed-coordinate shapes: "lat 19.07 lon 72.87" (with optional
// ':' or '=') and the bare pair "19.07,72.87".
var (
	latLonLabeledRe = regexp.MustCompile(`(?i)lat\s*[:=]?\s*(-?\d+(?:\.\d+)?)\s*[,\s]+lon\s*[:=]?\s*(-?\d+(?:\.\d+)?)`)
	latLonPairRe    = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)`)
)

// ExtractLatLon pulls coordinates out of free text. Returns ok=false when
// nothing parseable is present or the values are out of range.
func ExtractLatLon(text string) (lat, lon float64, ok bool) {
	m := latLonLabeledRe.FindStringSubmatch(text)
	if m == nil {
		m = latLonPairRe.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, 0, false
	}

	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil || !domain.ValidCoords(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}
