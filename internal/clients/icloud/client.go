// Package icloud reads calendars and events from an iCloud account over
// CalDAV. It is the source collaborator of the sync: the engine only
// depends on the calendar/event shapes it returns.
package icloud

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"go.uber.org/zap"

	"github.com/tazhate/icalsync/internal/domain"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultURL = "https://caldav.icloud.com"

	accountName = "iCloud"
)

// Client is a CalDAV client for Apple iCloud Calendar.
type Client struct {
	baseURL  string
	username string
	password string
	log      *zap.Logger

	client *caldav.Client
	// calendar display name -> CalDAV collection path, filled on discovery
	paths map[string]string
}

// NewClient creates a new iCloud CalDAV client. password must be an
// app-specific password.
func NewClient(baseURL, username, password string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		log:      log,
	}
}

// IsConfigured returns true if the client has credentials.
func (c *Client) IsConfigured() bool {
	return c.username != "" && c.password != ""
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// ListCalendars returns all calendars of the account.
func (c *Client) ListCalendars(ctx context.Context) ([]domain.Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	c.paths = make(map[string]string, len(cals))
	result := make([]domain.Calendar, 0, len(cals))
	for _, cal := range cals {
		c.paths[cal.Name] = cal.Path
		result = append(result, domain.Calendar{
			Name:    cal.Name,
			Account: accountName,
			Path:    cal.Path,
		})
	}

	return result, nil
}

// ListEvents returns the events of the named calendars within [from, to].
// Recurring events are expanded into concrete occurrences inside the
// window. Calendars that do not exist on the account are logged and
// skipped.
func (c *Client) ListEvents(ctx context.Context, calendars []string, from, to time.Time) ([]domain.RawEvent, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	if c.paths == nil {
		if _, err := c.ListCalendars(ctx); err != nil {
			return nil, err
		}
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}

	var events []domain.RawEvent
	for _, name := range calendars {
		path, ok := c.paths[name]
		if !ok {
			c.log.Warn("calendar not found on account, skipping", zap.String("calendar", name))
			continue
		}

		objects, err := client.QueryCalendar(ctx, path, query)
		if err != nil {
			return nil, fmt.Errorf("query calendar %q: %w", name, err)
		}

		for _, obj := range objects {
			parsed, err := parseCalendarObject(&obj)
			if err != nil {
				c.log.Debug("skipping unparsable calendar object",
					zap.String("path", obj.Path), zap.Error(err))
				continue
			}
			events = append(events, expandOccurrences(parsed, name, from, to)...)
		}
	}

	return events, nil
}

// parsedEvent is a VEVENT with its recurrence information, before
// expansion into concrete occurrences.
type parsedEvent struct {
	uid         string
	summary     string
	description string
	location    string
	start       time.Time
	end         time.Time
	allDay      bool
	rrule       string
	exDates     []time.Time
}

// parseCalendarObject extracts the first VEVENT of a CalDAV object.
func parseCalendarObject(obj *caldav.CalendarObject) (parsedEvent, error) {
	var ev parsedEvent

	if obj.Data == nil {
		return ev, fmt.Errorf("no data in calendar object")
	}

	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}

		if prop := comp.Props.Get(ical.PropUID); prop != nil {
			ev.uid = prop.Value
		}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			ev.summary = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			ev.description = prop.Value
		}
		if prop := comp.Props.Get(ical.PropLocation); prop != nil {
			ev.location = prop.Value
		}

		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				ev.start = t
			}
			if valueType := prop.Params.Get(ical.ParamValue); valueType == string(ical.ValueDate) {
				ev.allDay = true
			}
		}
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				ev.end = t
			}
		}

		if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
			ev.rrule = prop.Value
		}
		for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
			if t, err := prop.DateTime(time.UTC); err == nil {
				ev.exDates = append(ev.exDates, t)
			}
		}

		break // only the first VEVENT
	}

	if ev.start.IsZero() && ev.uid == "" {
		return ev, fmt.Errorf("object contains no VEVENT")
	}

	return ev, nil
}
