package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hrygo/selfcare/store"
)

// CalendarName is the display name of exported calendars.
const CalendarName = "Self-care"

// ExportBookings renders bookings as a VCALENDAR document.
func ExportBookings(bookings []*store.Booking) string {
	cal := ical.NewCalendarFor("selfcare")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(CalendarName)

	for _, b := range bookings {
		ev := cal.AddEvent(b.UID + "@selfcare")
		ev.SetDtStampTime(time.Unix(b.CreatedTs, 0))
		ev.SetCreatedTime(time.Unix(b.CreatedTs, 0))
		ev.SetStartAt(b.StartTime())
		ev.SetEndAt(b.EndTime())
		ev.SetSummary(b.Title)
		if b.Description != "" {
			ev.SetDescription(b.Description)
		}
	}
	return cal.Serialize()
}
