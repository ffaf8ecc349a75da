package model

import "time"

type Parent struct {
	ID             string    `json:"_id"`
	ClerkID        string    `json:"clerkId"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	PhoneNumber    string    `json:"phoneNumber,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	FamilyCodes    []string  `json:"familyCodes"`
	IsVerified     bool      `json:"isVerified"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
