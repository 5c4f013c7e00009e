// Package firm holds Morrison & Associates' static business data:
// attorney assignments, pricing, office details, and consultation
// scheduling. The data is lookup-only; tools treat it as the source
// of truth for firm facts.
package firm

import (
	"fmt"
	"strings"
	"time"
)

// Name and contact details for the firm.
const (
	Name        = "Morrison & Associates Law Firm"
	Phone       = "(312) 555-0100"
	Address     = "400 Main Street, Suite 300, Austin, TX 78701"
	OfficeHours = "Monday-Friday 9am-6pm CST"
)

// Greeting opens every conversation, on the phone line and in the
// interactive transcript alike.
const Greeting = "Thank you for calling Morrison and Associates. This is Clara speaking. How can I help you today?"

// FallbackAttorney is assigned when a practice area is unrecognized.
// Unknown areas are never an error; someone senior takes the call.
const FallbackAttorney = "Senior Attorney"

// OnCallAttorney handles urgent escalations.
const OnCallAttorney = "David Kim, J.D."

// ConsultationDuration describes the free initial consultation.
const ConsultationDuration = "15 minutes"

// attorneys maps normalized practice areas to the assigned attorney.
var attorneys = map[string]string{
	"family law":       "Sarah Chen, J.D.",
	"personal injury":  "Marcus Rodriguez, J.D.",
	"criminal defense": "David Kim, J.D.",
	"estate planning":  "Patricia Williams, J.D.",
}

// PracticeAreas returns the areas the firm practices.
func PracticeAreas() []string {
	return []string{"family law", "personal injury", "criminal defense", "estate planning"}
}

// NormalizeArea lower-cases and trims a practice-area string so
// lookups tolerate caller phrasing like " Family Law ".
func NormalizeArea(area string) string {
	return strings.ToLower(strings.TrimSpace(area))
}

// AttorneyFor returns the attorney assigned to a practice area, or
// FallbackAttorney when the area is unrecognized.
func AttorneyFor(practiceArea string) string {
	if attorney, ok := attorneys[NormalizeArea(practiceArea)]; ok {
		return attorney
	}
	return FallbackAttorney
}

// SchedulingAttorneyFor returns the attorney name used in availability
// listings: the short name without credentials, with a generic
// "our attorney" fallback.
func SchedulingAttorneyFor(practiceArea string) string {
	if attorney, ok := attorneys[NormalizeArea(practiceArea)]; ok {
		return strings.TrimSuffix(attorney, ", J.D.")
	}
	return "our attorney"
}

// maxSlots caps how many openings an availability check offers.
const maxSlots = 4

// AvailableSlots returns consultation openings over the next three
// days from now, weekdays only, at the firm's two daily consultation
// times, capped at maxSlots.
func AvailableSlots(now time.Time) []string {
	var slots []string
	for i := 1; i <= 3; i++ {
		day := now.AddDate(0, 0, i)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		date := day.Format("Monday January 02")
		slots = append(slots,
			fmt.Sprintf("%s at 10:00 AM CST", date),
			fmt.Sprintf("%s at 2:30 PM CST", date),
		)
	}
	if len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}
	return slots
}

// ConfirmationID builds a booking confirmation identifier.
func ConfirmationID(now time.Time) string {
	return "MLAW-" + now.Format("20060102150405")
}

// LeadID builds a CRM lead identifier.
func LeadID(now time.Time) string {
	return "HS-" + now.Format("20060102150405")
}

// AlertID builds an urgent escalation alert identifier.
func AlertID(now time.Time) string {
	return "URGENT-" + now.Format("20060102150405")
}
