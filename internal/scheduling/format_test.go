package scheduling

import (
	"strings"
	"testing"
	"time"

	"github.com/rgaros/fixline/internal/session"
)

func slotAt(hour int, tech string) session.OfferedSlot {
	start := time.Date(2025, 3, 4, hour, 0, 0, 0, time.UTC)
	return session.OfferedSlot{
		SlotID:         1,
		TechnicianID:   1,
		TechnicianName: tech,
		Start:          start,
		End:            start.Add(3 * time.Hour),
	}
}

func TestSpeakSlot(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{9, "Option 1: Tuesday, March 04, morning at 9 AM with Alex Martinez"},
		{13, "Option 1: Tuesday, March 04, afternoon at 1 PM with Alex Martinez"},
		{12, "Option 1: Tuesday, March 04, afternoon at 12 PM with Alex Martinez"},
		{0, "Option 1: Tuesday, March 04, morning at 12 AM with Alex Martinez"},
	}
	for _, tc := range cases {
		got := SpeakSlot(slotAt(tc.hour, "Alex Martinez"), 1)
		if got != tc.want {
			t.Errorf("hour %d: got %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestSpeakSlots(t *testing.T) {
	slots := []session.OfferedSlot{
		slotAt(9, "Alex Martinez"),
		slotAt(13, "Maria Chen"),
	}
	got := SpeakSlots(slots)

	if !strings.Contains(got, "Option 1:") || !strings.Contains(got, "Option 2:") {
		t.Errorf("missing option numbering: %q", got)
	}
	if !strings.Contains(got, "Say one, two.") {
		t.Errorf("selection prompt not sized to the offer list: %q", got)
	}
}

func TestSpeakBooking(t *testing.T) {
	got := SpeakBooking("Maria Chen", time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC))
	if !strings.Contains(got, "Maria Chen") || !strings.Contains(got, "Tuesday") || !strings.Contains(got, "March 04") {
		t.Errorf("booking confirmation missing details: %q", got)
	}
}
