package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FinancialYear is the July-to-June membership year.
// Start is always July 1 of the start year, End is June 30 of the following
// year, and Label is "<startYear>-<endYear>". It is an immutable value;
// construct instances via the functions below rather than by hand.
type FinancialYear struct {
	Start time.Time `bson:"start" json:"start"`
	End   time.Time `bson:"end" json:"end"`
	Label string    `bson:"label" json:"label"`
}

// FinancialYearForStartYear builds the FinancialYear beginning July 1 of startYear.
func FinancialYearForStartYear(startYear int) FinancialYear {
	return FinancialYear{
		Start: time.Date(startYear, time.July, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(startYear+1, time.June, 30, 0, 0, 0, 0, time.UTC),
		Label: fmt.Sprintf("%d-%d", startYear, startYear+1),
	}
}

// FinancialYearForDate returns the financial year containing the given date.
// Dates in July or later fall into the year starting that July; earlier
// dates belong to the year that started the previous July.
func FinancialYearForDate(date time.Time) FinancialYear {
	startYear := date.Year()
	if date.Month() < time.July {
		startYear--
	}
	return FinancialYearForStartYear(startYear)
}

// CurrentFinancialYear returns the financial year containing now.
func CurrentFinancialYear(now time.Time) FinancialYear {
	return FinancialYearForDate(now)
}

// FinancialYears returns the selector range around the current financial
// year: pastRange years back plus the current year and futureRange years
// forward, sorted by label descending (newest first).
func FinancialYears(now time.Time, pastRange, futureRange int) []FinancialYear {
	current := CurrentFinancialYear(now)
	startCurrent := current.StartYear()

	years := make([]FinancialYear, 0, pastRange+futureRange+1)
	for i := pastRange; i > 0; i-- {
		years = append(years, FinancialYearForStartYear(startCurrent-i))
	}
	for i := 0; i <= futureRange; i++ {
		years = append(years, FinancialYearForStartYear(startCurrent+i))
	}

	sort.Slice(years, func(i, j int) bool {
		return years[i].Label > years[j].Label
	})
	return years
}

// FinancialYearForLabel parses a "YYYY-YYYY" label back into a FinancialYear.
func FinancialYearForLabel(label string) (FinancialYear, error) {
	startYear, err := labelStartYear(label)
	if err != nil {
		return FinancialYear{}, err
	}
	fy := FinancialYearForStartYear(startYear)
	if fy.Label != label {
		return FinancialYear{}, fmt.Errorf("inconsistent financial year label %q", label)
	}
	return fy, nil
}

// StartYear returns the calendar year the financial year starts in.
func (fy FinancialYear) StartYear() int {
	y, err := labelStartYear(fy.Label)
	if err != nil {
		// Fall back to the start date for values built outside this package.
		return fy.Start.Year()
	}
	return y
}

func labelStartYear(label string) (int, error) {
	parts := strings.SplitN(label, "-", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed financial year label %q", label)
	}
	startYear, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed financial year label %q: %w", label, err)
	}
	return startYear, nil
}
