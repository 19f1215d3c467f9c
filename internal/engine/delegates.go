package engine

import (
	"eccnsw/memberdesk/internal/models"
)

// ReconcileDelegates rebuilds a member's delegate list to match a level's
// seat allocation. Existing names are preserved positionally within each
// delegate type; extra seats are added empty, surplus seats are dropped.
func ReconcileDelegates(existing []models.Delegate, opts models.DelegateOptions) []models.Delegate {
	var ordinary, youth []models.Delegate
	for _, d := range existing {
		switch d.Type {
		case models.DelegateTypeYouth:
			youth = append(youth, d)
		default:
			ordinary = append(ordinary, d)
		}
	}

	out := make([]models.Delegate, 0, opts.Delegates+opts.YouthDelegates)
	for i := 0; i < opts.Delegates; i++ {
		name := ""
		if i < len(ordinary) {
			name = ordinary[i].Name
		}
		out = append(out, models.Delegate{Name: name, Type: models.DelegateTypeOrdinary})
	}
	for i := 0; i < opts.YouthDelegates; i++ {
		name := ""
		if i < len(youth) {
			name = youth[i].Name
		}
		out = append(out, models.Delegate{Name: name, Type: models.DelegateTypeYouth})
	}
	return out
}
