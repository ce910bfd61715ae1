package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Visit{},
}

// Session is one run of the player over an itinerary
type Session struct {
	ID         uint         `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID       string     `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt"`
	PointCount int        `json:"pointCount"`
	StartIndex int        `json:"startIndex"`
	IsPlaying  bool       `json:"isPlaying"`

	Itinerary datatypes.JSON  `json:"itinerary"`                 // Points and their camera configuration
	Path      geom.LineString `json:"path" gorm:"type:geometry"` // WGS84 path through the points, empty for a single point
}

func (*Session) TableName() string {
	return "sessions"
}

// Visit records the player arriving at a point
type Visit struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_visit_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	ArrivedAt time.Time `json:"arrivedAt" gorm:"index:idx_visit_arrived_at"`
	Index     int       `json:"index"` // Position in the itinerary

	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Altitude  float64    `json:"altitude"`
	Position  geom.Point `json:"position" gorm:"type:geometry"` // EPSG:3857 position, altitude as Z

	Preset           string         `json:"preset" gorm:"size:32"`
	PlaybackDuration int64          `json:"playbackDuration"` // milliseconds
	Configuration    datatypes.JSON `json:"configuration"`
}

func (*Visit) TableName() string {
	return "visits"
}
