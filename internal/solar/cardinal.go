package solar

import "math"

// Cardinal is one of the four compass points.
type Cardinal string

const (
	North Cardinal = "N"
	East  Cardinal = "E"
	South Cardinal = "S"
	West  Cardinal = "W"
)

// CardinalFromAzimuth buckets an azimuth with boundaries at 45, 135, 225 and 315 degrees.
// Values at a boundary belong to the next point clockwise. NaN yields "".
func CardinalFromAzimuth(azimuth float64) Cardinal {
	if math.IsNaN(azimuth) || math.IsInf(azimuth, 0) {
		return ""
	}
	switch {
	case azimuth < 45 || azimuth >= 315:
		return North
	case azimuth < 135:
		return East
	case azimuth < 225:
		return South
	default:
		return West
	}
}

// Spanish returns the name used in the vision prompt.
func (c Cardinal) Spanish() string {
	switch c {
	case North:
		return "Norte"
	case East:
		return "Este"
	case South:
		return "Sur"
	case West:
		return "Oeste"
	default:
		return ""
	}
}
