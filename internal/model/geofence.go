package model

import "time"

// GeoFence is a named circular safe zone owned by one parent.
// Radius is in meters; membership is boundary-inclusive.
type GeoFence struct {
	ID        string    `json:"_id"`
	ParentID  string    `json:"parentId"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Radius    float64   `json:"radius"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
