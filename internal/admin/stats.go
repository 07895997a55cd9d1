package admin

import "github.com/robertarktes/yard-sale-vendors/internal/domain"

// Stats summarizes registrations for the dashboard. Failed rows are counted in Pending.
type Stats struct {
	Total        int `json:"total"`
	EarlyBird    int `json:"earlyBird"`
	Regular      int `json:"regular"`
	DayOf        int `json:"dayOf"`
	TotalRevenue int `json:"totalRevenue"`
	Completed    int `json:"completed"`
	Pending      int `json:"pending"`
}

func Aggregate(rows []domain.Registration) Stats {
	s := Stats{Total: len(rows)}
	for _, r := range rows {
		switch r.Tier {
		case domain.TierEarlyBird:
			s.EarlyBird++
		case domain.TierRegular:
			s.Regular++
		case domain.TierDayOf:
			s.DayOf++
		}
		if r.PaymentStatus == domain.StatusCompleted {
			s.Completed++
			s.TotalRevenue += r.Amount
		} else {
			s.Pending++
		}
	}
	return s
}
