package domain

import (
	"encoding/json"
	"strings"
)

// Form is the raw vendor signup as posted by the landing page.
type Form struct {
	FullName         string `json:"fullName" validate:"required"`
	Phone            string `json:"phone" validate:"required"`
	Email            string `json:"email" validate:"required"`
	Address          string `json:"address" validate:"required"`
	RegistrationType Tier   `json:"registrationType" validate:"required,oneof=early-bird regular day-of"`
	NumberOfSpaces   Spaces `json:"numberOfSpaces"`
	ItemsDescription string `json:"itemsDescription" validate:"max=500"`
	AgreeToRules     bool   `json:"agreeToRules" validate:"required"`
	BringOwnSupplies bool   `json:"bringOwnSupplies" validate:"required"`
}

// Normalize trims free-text fields in place.
func (f *Form) Normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	f.Address = strings.TrimSpace(f.Address)
	f.RegistrationType = Tier(strings.TrimSpace(string(f.RegistrationType)))
	f.NumberOfSpaces = Spaces(strings.TrimSpace(string(f.NumberOfSpaces)))
}

// Spaces holds the raw select value; browsers post it as a string, API clients as a number.
type Spaces string

func (s *Spaces) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Spaces(v)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = Spaces(b)
	return nil
}
