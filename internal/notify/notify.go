package notify

import (
	"context"

	"github.com/robertarktes/yard-sale-vendors/internal/domain"
)

// Confirmation is the receipt payload for one completed registration.
type Confirmation struct {
	Email            string `json:"email"`
	FullName         string `json:"fullName"`
	RegistrationType string `json:"registrationType"`
	NumberOfSpaces   int    `json:"numberOfSpaces"`
	TotalAmount      int    `json:"totalAmount"`
}

func ConfirmationFor(reg domain.Registration) Confirmation {
	return Confirmation{
		Email:            reg.Email,
		FullName:         reg.FullName,
		RegistrationType: string(reg.Tier),
		NumberOfSpaces:   reg.Spaces,
		TotalAmount:      reg.Amount,
	}
}

// Notifier delivers a confirmation. Callers treat failures as advisory.
type Notifier interface {
	Notify(ctx context.Context, c Confirmation) error
}
