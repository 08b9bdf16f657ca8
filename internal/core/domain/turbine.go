package domain

import (
	"math"
	"time"
)

// Turbine is one wind-power installation from the read-only dataset.
type Turbine struct {
	ID           int64   `json:"id"`
	LocationName string  `json:"location_name"`
	CapacityMW   float64 `json:"capacity_mw"`
	Lon          float64 `json:"lon"`
	Lat          float64 `json:"lat"`
}

// Location returns the turbine position.
func (t Turbine) Location() GeoPoint {
	return GeoPoint{Lon: t.Lon, Lat: t.Lat}
}

// HouseholdsPowered is the derived display metric for this turbine.
func (t Turbine) HouseholdsPowered() int64 {
	return HouseholdsPowered(t.CapacityMW)
}

// NearbyTurbine is a nearest-neighbour result. Distance is planar, in
// degrees of SRID 4326, the same measure the result is ordered by.
type NearbyTurbine struct {
	Turbine
	Distance float64 `json:"distance"`
}

// DatasetStats summarises the dataset behind a store.
type DatasetStats struct {
	Count           int64       `json:"count"`
	TotalCapacityMW float64     `json:"total_capacity_mw"`
	Extent          BoundingBox `json:"extent"`
}

// Average annual consumption of one household, in MWh, and the yearly
// full-load hours assumed per MW of capacity.
const (
	householdMWh  = 3.5
	fullLoadHours = 2000
)

// HouseholdsPowered returns round(capacityMW * 2000 / 3.5).
func HouseholdsPowered(capacityMW float64) int64 {
	return int64(math.Round(capacityMW * fullLoadHours / householdMWh))
}

// NATS subjects announcing changes to the external dataset.
const (
	DatasetSubjectPrefix   = "turbines.dataset."
	DatasetSubjectWildcard = "turbines.dataset.>"
)

// DatasetEvent is the body of a dataset-change notification.
type DatasetEvent struct {
	Version   string    `json:"version"`
	ChangedAt time.Time `json:"changed_at"`
}
