// Package google talks to the Google Calendar v3 REST API. It is the
// remote collaborator of the sync; failures map onto AuthError,
// RateLimitError and NetworkError so the executor can decide what to
// retry.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/icalsync/internal/domain"
)

const baseURL = "https://www.googleapis.com/calendar/v3"

// Client is a Google Calendar API client authenticating with an OAuth2
// token file.
type Client struct {
	clientID     string
	clientSecret string
	tokenFile    string
	httpClient   *http.Client
	log          *zap.Logger

	mu    sync.Mutex
	token *Token
}

// NewClient creates a new Google Calendar client.
func NewClient(clientID, clientSecret, tokenFile string, log *zap.Logger) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenFile:    tokenFile,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// IsConfigured returns true if the client has OAuth credentials.
func (c *Client) IsConfigured() bool {
	return c.clientID != "" && c.clientSecret != "" && c.tokenFile != ""
}

// accessToken returns a valid access token, refreshing and re-persisting
// it when expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		t, err := loadToken(c.tokenFile)
		if err != nil {
			return "", &AuthError{StatusCode: 0, Message: err.Error()}
		}
		c.token = t
	}

	if c.token.valid() {
		return c.token.AccessToken, nil
	}

	t, err := refreshToken(ctx, c.httpClient, c.clientID, c.clientSecret, c.token)
	if err != nil {
		return "", err
	}
	c.token = t
	if err := saveToken(c.tokenFile, t); err != nil {
		// Keep going with the in-memory token; only persisting failed.
		c.log.Warn("could not persist refreshed token", zap.Error(err))
	}
	return t.AccessToken, nil
}

// doRequest performs an authenticated request and maps failures onto the
// error taxonomy.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, c.apiError(resp, respBody)
	}

	return respBody, nil
}

func (c *Client) apiError(resp *http.Response, body []byte) error {
	var parsed apiError
	_ = json.Unmarshal(body, &parsed)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusForbidden && isRateLimitReason(parsed):
		return &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	case resp.StatusCode >= 500:
		return &NetworkError{Err: fmt.Errorf("server error %d: %s", resp.StatusCode, parsed.Error.Message)}
	default:
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
}

func isRateLimitReason(e apiError) bool {
	for _, detail := range e.Error.Errors {
		switch detail.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// ListCalendars returns the calendars visible to the authenticated user.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarListEntry, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/users/me/calendarList", nil)
	if err != nil {
		return nil, err
	}
	var list calendarList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse calendar list: %w", err)
	}
	return list.Items, nil
}

// CreateEvent creates the event in the target calendar and returns the
// remote event id.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, ev domain.CanonicalEvent) (string, error) {
	data, err := c.doRequest(ctx, http.MethodPost,
		"/calendars/"+url.PathEscape(calendarID)+"/events", eventBody(ev))
	if err != nil {
		return "", err
	}
	var created event
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("parse created event: %w", err)
	}
	return created.ID, nil
}

// UpdateEvent replaces the remote event with the current source content.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, remoteID string, ev domain.CanonicalEvent) error {
	_, err := c.doRequest(ctx, http.MethodPut,
		"/calendars/"+url.PathEscape(calendarID)+"/events/"+url.PathEscape(remoteID), eventBody(ev))
	return err
}

// DeleteEvent removes the remote event. An already-deleted event is
// treated as success so re-runs after a partial failure converge.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, remoteID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete,
		"/calendars/"+url.PathEscape(calendarID)+"/events/"+url.PathEscape(remoteID), nil)
	if err != nil {
		if strings.Contains(err.Error(), "API error 404") || strings.Contains(err.Error(), "API error 410") {
			return nil
		}
		return err
	}
	return nil
}

// eventBody converts a canonical event into the wire shape, carrying the
// sync markers the reconciler relies on for traceability.
func eventBody(ev domain.CanonicalEvent) event {
	out := event{
		Summary:     ev.Title,
		Description: ev.Notes,
		Location:    ev.Location,
		Source: &eventSource{
			Title: fmt.Sprintf("Synced from iCloud (%s)", ev.SourceCalendar),
		},
		ExtendedProperties: &extendedProperties{
			Private: map[string]string{
				"icloud_sync":     "true",
				"icloud_calendar": ev.SourceCalendar,
				"icloud_uid":      ev.IdentityKey,
				"sync_timestamp":  time.Now().UTC().Format(time.RFC3339),
			},
		},
	}

	if ev.AllDay {
		out.Start = eventDateTime{Date: ev.Start.Format("2006-01-02")}
		out.End = eventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		out.Start = eventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.Start.Location().String(),
		}
		out.End = eventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.End.Location().String(),
		}
	}

	return out
}
