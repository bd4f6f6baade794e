package google

// CalendarListEntry is one calendar visible to the authenticated user.
type CalendarListEntry struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Primary    bool   `json:"primary,omitempty"`
	AccessRole string `json:"accessRole,omitempty"`
}

type calendarList struct {
	Items []CalendarListEntry `json:"items"`
}

// eventDateTime is either a date (all-day) or a dateTime.
type eventDateTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type extendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

// event is the wire shape of a Google Calendar event.
type event struct {
	ID                 string              `json:"id,omitempty"`
	Summary            string              `json:"summary"`
	Description        string              `json:"description,omitempty"`
	Location           string              `json:"location,omitempty"`
	Start              eventDateTime       `json:"start"`
	End                eventDateTime       `json:"end"`
	Source             *eventSource        `json:"source,omitempty"`
	ExtendedProperties *extendedProperties `json:"extendedProperties,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}
