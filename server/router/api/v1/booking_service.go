package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/selfcare/plugin/calendar/ics"
	"github.com/hrygo/selfcare/plugin/calendar/local"
	apierrors "github.com/hrygo/selfcare/server/internal/errors"
	"github.com/hrygo/selfcare/store"
)

// feedLimit caps the number of entries in the booking feed.
const feedLimit = 50

// BookingResponse is the API view of a local booking.
type BookingResponse struct {
	UID         string `json:"uid"`
	CalendarID  string `json:"calendar_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Timezone    string `json:"timezone"`
	Link        string `json:"link"`
}

// ListBookingsResponse is the body of GET /api/v1/bookings.
type ListBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
}

// ListBookings lists local bookings, optionally overlapping [start, end).
// GET /api/v1/bookings?start=&end=&calendar_id=
func (s *APIV1Service) ListBookings(c echo.Context) error {
	find, err := s.bookingFilter(c)
	if err != nil {
		return invalidArgument(c, err.Error())
	}
	list, err := s.Store.ListBookings(c.Request().Context(), find)
	if err != nil {
		return respondError(c, err)
	}
	resp := ListBookingsResponse{Bookings: make([]BookingResponse, 0, len(list))}
	for _, b := range list {
		resp.Bookings = append(resp.Bookings, s.convertBooking(b))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetBooking returns one booking.
// GET /api/v1/bookings/:uid
func (s *APIV1Service) GetBooking(c echo.Context) error {
	b, err := s.Store.GetBooking(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return respondError(c, err)
	}
	if b == nil {
		return respondError(c, apierrors.NotFound("booking not found"))
	}
	return c.JSON(http.StatusOK, s.convertBooking(b))
}

// DeleteBooking removes a booking and frees its interval.
// DELETE /api/v1/bookings/:uid
func (s *APIV1Service) DeleteBooking(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")
	b, err := s.Store.GetBooking(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	if b == nil {
		return respondError(c, apierrors.NotFound("booking not found"))
	}
	if err := s.Store.DeleteBooking(ctx, &store.DeleteBooking{UID: uid}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportBookings renders bookings as an iCalendar document.
// GET /api/v1/bookings.ics
func (s *APIV1Service) ExportBookings(c echo.Context) error {
	find, err := s.bookingFilter(c)
	if err != nil {
		return invalidArgument(c, err.Error())
	}
	list, err := s.Store.ListBookings(c.Request().Context(), find)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="selfcare.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics.ExportBookings(list)))
}

// BookingFeed renders upcoming bookings as an Atom feed.
// GET /api/v1/bookings/feed
func (s *APIV1Service) BookingFeed(c echo.Context) error {
	now := s.now()
	from := now.Unix()
	limit := feedLimit
	list, err := s.Store.ListBookings(c.Request().Context(), &store.FindBooking{
		StartTs: &from,
		EndTs:   ptr(now.Add(s.Orchestrator.Config().SearchWindow).Unix()),
		Limit:   &limit,
	})
	if err != nil {
		return respondError(c, err)
	}

	baseURL := c.Scheme() + "://" + c.Request().Host
	feed := &feeds.Feed{
		Title:       ics.CalendarName,
		Link:        &feeds.Link{Href: baseURL + "/api/v1/bookings"},
		Description: "Upcoming self-care blocks",
		Created:     now,
	}
	for _, b := range list {
		start := b.StartTime().In(s.home())
		end := b.EndTime().In(s.home())
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          b.UID,
			Title:       b.Title,
			Link:        &feeds.Link{Href: baseURL + "/api/v1" + local.Link(b.UID)},
			Description: fmt.Sprintf("%s - %s", start.Format("Mon Jan 2 03:04 PM"), end.Format("03:04 PM MST")),
			Content:     b.Description,
			Created:     time.Unix(b.CreatedTs, 0),
			Updated:     start,
		})
	}
	atom, err := feed.ToAtom()
	if err != nil {
		return respondError(c, err)
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}

func (s *APIV1Service) bookingFilter(c echo.Context) (*store.FindBooking, error) {
	find := &store.FindBooking{}
	if id := c.QueryParam("calendar_id"); id != "" {
		find.CalendarID = &id
	}
	now := s.now()
	resolver := s.Orchestrator.Resolver()
	if raw := c.QueryParam("start"); raw != "" {
		start, err := resolver.ParseDateBound(raw, now, false)
		if err != nil {
			return nil, err
		}
		find.StartTs = ptr(start.Unix())
	}
	if raw := c.QueryParam("end"); raw != "" {
		end, err := resolver.ParseDateBound(raw, now, true)
		if err != nil {
			return nil, err
		}
		find.EndTs = ptr(end.Unix())
	}
	if find.StartTs != nil && find.EndTs != nil && *find.EndTs <= *find.StartTs {
		return nil, fmt.Errorf("end must be after start")
	}
	return find, nil
}

func (s *APIV1Service) convertBooking(b *store.Booking) BookingResponse {
	loc := s.home()
	if b.Timezone != "" {
		if l, err := time.LoadLocation(b.Timezone); err == nil {
			loc = l
		}
	}
	return BookingResponse{
		UID:         b.UID,
		CalendarID:  b.CalendarID,
		Title:       b.Title,
		Description: b.Description,
		Start:       b.StartTime().In(loc).Format(time.RFC3339),
		End:         b.EndTime().In(loc).Format(time.RFC3339),
		Timezone:    loc.String(),
		Link:        local.Link(b.UID),
	}
}

func ptr[T any](v T) *T {
	return &v
}
