package caldav

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCalendar(t *testing.T, raw string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(raw)).Decode()
	require.NoError(t, err)
	return cal
}

func TestBusyRangesFromCalendar(t *testing.T) {
	t.Run("extracts event range in UTC", func(t *testing.T) {
		cal := decodeCalendar(t, "BEGIN:VCALENDAR\r\n"+
			"VERSION:2.0\r\n"+
			"PRODID:-//test//test//EN\r\n"+
			"BEGIN:VEVENT\r\n"+
			"UID:evt-1\r\n"+
			"DTSTAMP:20260901T000000Z\r\n"+
			"DTSTART:20260907T100000Z\r\n"+
			"DTEND:20260907T110000Z\r\n"+
			"SUMMARY:Standup\r\n"+
			"END:VEVENT\r\n"+
			"END:VCALENDAR\r\n")

		ranges := busyRangesFromCalendar(cal)
		require.Len(t, ranges, 1)
		assert.Equal(t, time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), ranges[0].Start)
		assert.Equal(t, time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC), ranges[0].End)
	})

	t.Run("skips transparent events", func(t *testing.T) {
		cal := decodeCalendar(t, "BEGIN:VCALENDAR\r\n"+
			"VERSION:2.0\r\n"+
			"PRODID:-//test//test//EN\r\n"+
			"BEGIN:VEVENT\r\n"+
			"UID:evt-2\r\n"+
			"DTSTAMP:20260901T000000Z\r\n"+
			"DTSTART:20260907T100000Z\r\n"+
			"DTEND:20260907T110000Z\r\n"+
			"TRANSP:TRANSPARENT\r\n"+
			"END:VEVENT\r\n"+
			"END:VCALENDAR\r\n")

		assert.Empty(t, busyRangesFromCalendar(cal))
	})

	t.Run("skips cancelled events", func(t *testing.T) {
		cal := decodeCalendar(t, "BEGIN:VCALENDAR\r\n"+
			"VERSION:2.0\r\n"+
			"PRODID:-//test//test//EN\r\n"+
			"BEGIN:VEVENT\r\n"+
			"UID:evt-3\r\n"+
			"DTSTAMP:20260901T000000Z\r\n"+
			"DTSTART:20260907T100000Z\r\n"+
			"DTEND:20260907T110000Z\r\n"+
			"STATUS:CANCELLED\r\n"+
			"END:VEVENT\r\n"+
			"END:VCALENDAR\r\n")

		assert.Empty(t, busyRangesFromCalendar(cal))
	})

	t.Run("skips events without usable times", func(t *testing.T) {
		cal := decodeCalendar(t, "BEGIN:VCALENDAR\r\n"+
			"VERSION:2.0\r\n"+
			"PRODID:-//test//test//EN\r\n"+
			"BEGIN:VEVENT\r\n"+
			"UID:evt-4\r\n"+
			"DTSTAMP:20260901T000000Z\r\n"+
			"SUMMARY:No times\r\n"+
			"END:VEVENT\r\n"+
			"END:VCALENDAR\r\n")

		assert.Empty(t, busyRangesFromCalendar(cal))
	})
}
