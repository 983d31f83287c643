package datastore

import (
	"time"

	"gorm.io/gorm"
)

// Group is a project that owns devices and stations.
type Group struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:255;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Device is a camera or recorder.
type Device struct {
	ID        uint      `gorm:"primaryKey"`
	GroupID   uint      `gorm:"not null;index"`
	Name      string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Station is a fixed location that devices record at.
type Station struct {
	ID        uint      `gorm:"primaryKey"`
	GroupID   uint      `gorm:"not null;index"`
	Name      string    `gorm:"size:255;not null"`
	Latitude  *float64
	Longitude *float64
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Recording is one clip or image captured by a device at a station.
type Recording struct {
	ID                uint           `gorm:"primaryKey"`
	GroupID           uint           `gorm:"not null;index"`
	StationID         uint           `gorm:"not null;index:idx_recording_station_time"`
	DeviceID          uint           `gorm:"not null;index"`
	Type              string         `gorm:"size:32;not null;index"`
	RecordingDateTime time.Time      `gorm:"not null;index:idx_recording_station_time"`
	Duration          float64        `gorm:"not null;default:0"`
	ProcessingState   string         `gorm:"size:64"`
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`

	Group   *Group   `gorm:"foreignKey:GroupID"`
	Station *Station `gorm:"foreignKey:StationID"`
	Device  *Device  `gorm:"foreignKey:DeviceID"`
	Tracks  []Track  `gorm:"foreignKey:RecordingID"`
}

// Track is one subject followed through a recording. Data is the raw JSON
// blob written by the tracker.
type Track struct {
	ID          uint   `gorm:"primaryKey"`
	RecordingID uint   `gorm:"not null;index"`
	Data        string `gorm:"type:text"`
	Archived    bool   `gorm:"not null;default:false"`
	Filtered    bool   `gorm:"not null;default:false"`

	Tags []TrackTag `gorm:"foreignKey:TrackID"`
}

// TrackTag is one label on a track, from a person or a classifier.
type TrackTag struct {
	ID         uint      `gorm:"primaryKey"`
	TrackID    uint      `gorm:"not null;index"`
	What       string    `gorm:"size:128;not null"`
	Automatic  bool      `gorm:"not null;default:false"`
	Confidence float64   `gorm:"not null;default:0"`
	Used       bool      `gorm:"not null;index"`
	Archived   bool      `gorm:"not null;default:false"`
	Data       string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// allModels lists every entity in migration order.
func allModels() []any {
	return []any{&Group{}, &Device{}, &Station{}, &Recording{}, &Track{}, &TrackTag{}}
}
