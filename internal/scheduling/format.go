// Package scheduling formats technician availability for speech output.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/rgaros/fixline/internal/session"
)

// SpeakSlot renders one offered slot the way the agent reads it out:
// "Option 1: Tuesday, March 04, morning at 9 AM with Alex Martinez".
func SpeakSlot(slot session.OfferedSlot, optionNumber int) string {
	start := slot.Start
	dayName := start.Weekday().String()
	dateStr := start.Format("January 02")

	hour := start.Hour()
	var timeOfDay, timeStr string
	if hour < 12 {
		timeOfDay = "morning"
		if hour == 0 {
			timeStr = "12 AM"
		} else {
			timeStr = fmt.Sprintf("%d AM", hour)
		}
	} else {
		timeOfDay = "afternoon"
		hour12 := hour
		if hour > 12 {
			hour12 = hour - 12
		}
		timeStr = fmt.Sprintf("%d PM", hour12)
	}

	return fmt.Sprintf("Option %d: %s, %s, %s at %s with %s",
		optionNumber, dayName, dateStr, timeOfDay, timeStr, slot.TechnicianName)
}

// SpeakSlots renders the whole offer list followed by the selection prompt.
func SpeakSlots(slots []session.OfferedSlot) string {
	parts := make([]string, 0, len(slots)+1)
	for i, slot := range slots {
		parts = append(parts, SpeakSlot(slot, i+1))
	}
	ordinals := []string{"one", "two", "three"}
	n := len(slots)
	if n > len(ordinals) {
		n = len(ordinals)
	}
	parts = append(parts, "Which option works for you? Say "+strings.Join(ordinals[:n], ", ")+".")
	return strings.Join(parts, ". ")
}

// SpeakBooking renders the confirmation after a successful booking.
func SpeakBooking(technicianName string, start time.Time) string {
	return fmt.Sprintf("You're all set. %s will come out on %s, %s. You'll get a reminder before the visit. Thank you for calling, goodbye.",
		technicianName, start.Weekday(), start.Format("January 02"))
}
