package story

import (
	"strconv"
	"strings"
	"time"
)

// TempIDPrefix marks stories created while offline, before the server has
// assigned a real id.
const TempIDPrefix = "temp-"

// Story is a single geotagged story as cached locally. Server-assigned ids
// are opaque strings; offline-created stories carry a temporary id until the
// outbox replay reconciles them.
type Story struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Synced      bool      `json:"-"`
}

// NewTempID returns a locally unique placeholder id for an offline story.
func NewTempID(now time.Time) string {
	return TempIDPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// IsTempID reports whether id was generated by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Valid reports whether the record is complete enough to show. Records
// failing this check are skipped by listings, never surfaced.
func (s *Story) Valid() bool {
	return s != nil && s.ID != "" && s.Name != ""
}
