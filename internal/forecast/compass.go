package forecast

import "math"

// CompassPoints are the sixteen labels returned by BearingToCompass, clockwise
// from north.
var CompassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

const compassSector = 360.0 / 16

// BearingToCompass maps a bearing in degrees to a 16-point compass label.
// Each label covers a half-open 22.5 degree sector centred on its direction,
// so N spans [348.75, 360) and [0, 11.25). Bearings outside [0, 360) are
// reduced modulo 360; NaN and infinities map to N.
func BearingToCompass(deg float64) string {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return CompassPoints[0]
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	idx := int(math.Floor((deg+compassSector/2)/compassSector)) % len(CompassPoints)
	return CompassPoints[idx]
}
