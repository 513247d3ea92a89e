package incidence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// IsRecurring reports whether inc is a series parent with a recurrence
// rule, as opposed to a standalone incidence or a persistent exception.
func IsRecurring(inc *model.Incidence) bool {
	return inc.RRule != "" && !inc.IsException()
}

// OccursAt reports whether the recurring series described by parent has an
// occurrence instant equal to at, honoring RRULE, RDATE, and EXDATE. It
// tells an occurrence that still belongs to the series apart from one the
// series no longer generates; the notebook sync agent does not call it.
func OccursAt(parent *model.Incidence, at time.Time) (bool, error) {
	if parent.Start == nil {
		return false, fmt.Errorf("incidence: recurring series %q has no DTSTART", parent.UID)
	}
	for _, ex := range parent.ExDates {
		if ex.Equal(at) {
			return false, nil
		}
	}
	for _, rd := range parent.RDates {
		if rd.Equal(at) {
			return true, nil
		}
	}
	if parent.RRule == "" {
		return parent.Start.Equal(at), nil
	}

	option, err := rrule.StrToROption(parent.RRule)
	if err != nil {
		return false, fmt.Errorf("incidence: parsing RRULE %q: %w", parent.RRule, err)
	}
	option.Dtstart = *parent.Start
	rule, err := rrule.NewRRule(*option)
	if err != nil {
		return false, fmt.Errorf("incidence: building RRULE %q: %w", parent.RRule, err)
	}

	occurrences := rule.Between(at, at, true)
	return len(occurrences) > 0, nil
}
