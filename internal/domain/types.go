package domain

import "time"

type Pin struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"userId"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
}

// WeatherSnapshot is captured once when an entry is created. Every field is
// optional; a snapshot with all fields nil means no weather was available.
type WeatherSnapshot struct {
	Temperature   *float64 `json:"temperature"`
	WindSpeed     *float64 `json:"windSpeed"`
	WindDirection *float64 `json:"windDirection"`
	CloudCoverage *float64 `json:"cloudCoverage"`
	Visibility    *float64 `json:"visibility"`
	Condition     *string  `json:"weatherCondition"`
	Description   *string  `json:"weatherDescription"`
}

// IsEmpty reports whether no weather field is set.
func (w WeatherSnapshot) IsEmpty() bool {
	return w.Temperature == nil && w.WindSpeed == nil && w.WindDirection == nil &&
		w.CloudCoverage == nil && w.Visibility == nil && w.Condition == nil && w.Description == nil
}

type Entry struct {
	ID       int64    `json:"id"`
	PinID    int64    `json:"pinId"`
	OwnerID  string   `json:"userId"`
	Species  string   `json:"fishType"`
	Length   *float64 `json:"length"`
	Weight   *float64 `json:"weight"`
	Tackle   string   `json:"tackle"`
	Notes    *string  `json:"notes"`
	PhotoRef *string  `json:"-"`
	// PhotoURL is resolved from PhotoRef on reads and never stored.
	PhotoURL  *string         `json:"photoUrl"`
	DateTime  time.Time       `json:"dateTime"`
	Weather   WeatherSnapshot `json:"weather"`
	CreatedAt time.Time       `json:"createdAt"`
}

type PinWithEntries struct {
	*Pin
	Entries []*Entry `json:"entries"`
}
