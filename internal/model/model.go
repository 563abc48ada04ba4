// Package model holds the persistent domain types shared by the store,
// queue, worker, and calendar layers.
package model

import (
	"time"
)

// EventKind is the closed set of alignment event kinds.
type EventKind string

const (
	DiamondSunrise EventKind = "diamond_sunrise"
	DiamondSunset  EventKind = "diamond_sunset"
	PearlMoonrise  EventKind = "pearl_moonrise"
	PearlMoonset   EventKind = "pearl_moonset"
)

// IsDiamond reports whether the kind is a solar alignment.
func (k EventKind) IsDiamond() bool {
	return k == DiamondSunrise || k == DiamondSunset
}

// IsPearl reports whether the kind is a lunar alignment.
func (k EventKind) IsPearl() bool {
	return k == PearlMoonrise || k == PearlMoonset
}

// Valid reports whether k is one of the four known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case DiamondSunrise, DiamondSunset, PearlMoonrise, PearlMoonset:
		return true
	}
	return false
}

// AccuracyTier is the ordinal quality band derived from the quality score.
type AccuracyTier string

const (
	TierPerfect   AccuracyTier = "perfect"
	TierExcellent AccuracyTier = "excellent"
	TierGood      AccuracyTier = "good"
	TierFair      AccuracyTier = "fair"
)

// TierForQuality maps a quality score in [0, 1] to its accuracy tier.
func TierForQuality(q float64) AccuracyTier {
	switch {
	case q >= 0.90:
		return TierPerfect
	case q >= 0.75:
		return TierExcellent
	case q >= 0.50:
		return TierGood
	default:
		return TierFair
	}
}

// Location is a curated ground observation point around Mt. Fuji.
//
// The derived triple (FujiBearingDeg, FujiApparentElevationDeg,
// FujiDistanceM) is recomputed whenever the geodetic inputs change; a row
// whose derived values no longer match its inputs is stale and must not
// serve queries until reconciled.
type Location struct {
	ID         int64
	Name       string
	Prefecture string
	Latitude   float64 // degrees, WGS84
	Longitude  float64 // degrees, WGS84
	Elevation  float64 // metres above sea level
	AccessNote string  // optional free text

	FujiBearingDeg           float64
	FujiApparentElevationDeg float64
	FujiDistanceM            float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is one computed Diamond/Pearl alignment.
type Event struct {
	ID         int64
	LocationID int64
	Kind       EventKind
	Date       time.Time // civil date, midnight JST
	Time       time.Time // the alignment instant, with zone

	CelestialAzimuthDeg  float64
	CelestialAltitudeDeg float64

	MoonPhase        *float64 // [0,1], Pearl only
	MoonIllumination *float64 // [0,1], Pearl only

	QualityScore    float64 // [0,1]
	AccuracyTier    AccuracyTier
	CalculationYear int // which scheduler pass produced it

	// Joined in on read paths; nil on write paths.
	Location *Location
}

// Admin is persisted for the external auth collaborator; the core only
// stores it.
type Admin struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string // bcrypt
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SettingType tags how a SystemSetting value string should be interpreted.
type SettingType string

const (
	SettingInt     SettingType = "int"
	SettingFloat   SettingType = "float"
	SettingBool    SettingType = "bool"
	SettingString  SettingType = "string"
	SettingIntList SettingType = "int_list"
)

// SystemSetting is one row of the mutable key/value settings table.
type SystemSetting struct {
	Key         string
	Value       string
	Type        SettingType
	Description string
	Editable    bool
}

// JobKind enumerates the queue's job kinds.
type JobKind string

const (
	JobLocationRange JobKind = "location-range"
	JobMonthlyRange  JobKind = "monthly-range"
	JobDaily         JobKind = "daily"
)

// JobState is the queue-internal job lifecycle.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobDelayed   JobState = "delayed"
)

// Job priorities. Higher drains first.
const (
	PriorityHigh   = 10
	PriorityNormal = 5
	PriorityLow    = 1
)

// JobPayload carries the per-kind parameters. Unused fields stay zero.
type JobPayload struct {
	LocationID int64  `json:"location_id"`
	YearFrom   int    `json:"year_from,omitempty"` // location-range
	YearTo     int    `json:"year_to,omitempty"`   // location-range
	Year       int    `json:"year,omitempty"`      // monthly-range
	Month      int    `json:"month,omitempty"`     // monthly-range
	Date       string `json:"date,omitempty"`      // daily, YYYY-MM-DD (JST)
}

// Job is one queued unit of calculation work.
type Job struct {
	ID          int64
	Kind        JobKind
	DedupKey    string // collapses logical duplicates in waiting/delayed
	Payload     JobPayload
	Priority    int
	NotBefore   time.Time
	Attempts    int
	MaxAttempts int
	State       JobState
	LastError   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}
