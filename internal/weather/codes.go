package weather

import (
	"fmt"
	"math"
	"strconv"
)

// WMO weather interpretation codes as reported by Open-Meteo.
var codeDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// Describe returns the table description for code, or "Weather code {n}".
func Describe(code int) string {
	if d, ok := codeDescriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("Weather code %d", code)
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Compass returns the 16-point label for a wind direction in degrees.
func Compass(degrees float64) string {
	i := int(math.Floor(degrees/22.5+0.5)) % 16
	if i < 0 {
		i += 16
	}
	return compassPoints[i]
}

// FormatVisibility renders meters as "10+ km", "x.y km" or "n m".
func FormatVisibility(meters float64) string {
	switch {
	case meters >= 10000:
		return "10+ km"
	case meters >= 1000:
		return strconv.FormatFloat(meters/1000, 'f', 1, 64) + " km"
	default:
		return strconv.FormatFloat(meters, 'f', -1, 64) + " m"
	}
}
