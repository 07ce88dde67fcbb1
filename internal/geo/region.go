// Package geo holds the pure geometry helpers of the tracker: region cells,
// great-circle distance, coincident-point separation and walking estimates.
package geo

import (
	"encoding/base64"
	"math"
	"strconv"
)

// DefaultCellScale buckets coordinates to one decimal digit (~11 km).
const DefaultCellScale = 10

// RegionOf maps a coordinate onto an opaque, channel-safe region token.
// Both axes are scaled and floored, joined as "<latCell>-<lngCell>" and
// base64 encoded, so every point inside the same cell yields the same token.
func RegionOf(lat, lng, scale float64) string {
	latCell := int64(math.Floor(lat * scale))
	lngCell := int64(math.Floor(lng * scale))
	cell := strconv.FormatInt(latCell, 10) + "-" + strconv.FormatInt(lngCell, 10)
	return base64.StdEncoding.EncodeToString([]byte(cell))
}
