package domain

import (
	"strings"
	"time"
)

type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Company    string    `json:"company,omitempty"`
	Address1   string    `json:"address1"`
	Address2   string    `json:"address2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	Phone      string    `json:"phone,omitempty"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MissingFields lists required fields that are blank.
func (a *Address) MissingFields() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("firstName", a.FirstName)
	check("lastName", a.LastName)
	check("address1", a.Address1)
	check("city", a.City)
	check("postalCode", a.PostalCode)
	check("country", a.Country)
	return missing
}

// SplitFullName splits at the first space: "Ada King Lovelace" -> ("Ada", "King Lovelace").
func SplitFullName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}
