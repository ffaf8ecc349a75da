package model

import "time"

type Child struct {
	ID                string             `json:"_id"`
	ParentID          string             `json:"parentId"`
	FamilyCode        string             `json:"familyCode"`
	Name              string             `json:"name"`
	Age               int                `json:"age"`
	ProfilePicture    string             `json:"profilePicture,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
	IsOnline          bool               `json:"isOnline"`
	LastSeen          *time.Time         `json:"lastSeen,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	PhoneNumber  string `json:"phoneNumber"`
	Relationship string `json:"relationship"`
}

// LocationPoint is one entry in a child's stored location trail.
type LocationPoint struct {
	ID         int64     `json:"id"`
	FamilyCode string    `json:"familyCode"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
}
