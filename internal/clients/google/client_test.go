package google

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/icalsync/internal/domain"
)

func response(status int, headers map[string]string) *http.Response {
	resp := &http.Response{StatusCode: status, Header: http.Header{}}
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	return resp
}

func TestAPIErrorMapping(t *testing.T) {
	c := NewClient("id", "secret", "token.json", zap.NewNop())

	t.Run("429 is a rate limit", func(t *testing.T) {
		err := c.apiError(response(429, map[string]string{"Retry-After": "30"}), nil)
		var rle *RateLimitError
		require.ErrorAs(t, err, &rle)
		assert.Equal(t, 30*time.Second, rle.RetryAfter)
		assert.True(t, rle.Temporary())
	})

	t.Run("403 with quota reason is a rate limit", func(t *testing.T) {
		body := []byte(`{"error":{"code":403,"message":"Rate Limit Exceeded","errors":[{"reason":"rateLimitExceeded"}]}}`)
		err := c.apiError(response(403, nil), body)
		var rle *RateLimitError
		require.ErrorAs(t, err, &rle)
	})

	t.Run("plain 403 is an auth failure", func(t *testing.T) {
		body := []byte(`{"error":{"code":403,"message":"Forbidden","errors":[{"reason":"forbidden"}]}}`)
		err := c.apiError(response(403, nil), body)
		var ae *AuthError
		require.ErrorAs(t, err, &ae)
		assert.False(t, ae.Temporary())
	})

	t.Run("401 is an auth failure", func(t *testing.T) {
		err := c.apiError(response(401, nil), nil)
		var ae *AuthError
		require.ErrorAs(t, err, &ae)
	})

	t.Run("500 is retryable", func(t *testing.T) {
		err := c.apiError(response(500, nil), nil)
		var ne *NetworkError
		require.ErrorAs(t, err, &ne)
		assert.True(t, ne.Temporary())
	})

	t.Run("404 stays a plain error", func(t *testing.T) {
		err := c.apiError(response(404, nil), []byte("not found"))
		assert.Contains(t, err.Error(), "API error 404")
	})
}

func TestIsConfigured(t *testing.T) {
	assert.True(t, NewClient("id", "secret", "token.json", zap.NewNop()).IsConfigured())
	assert.False(t, NewClient("", "secret", "token.json", zap.NewNop()).IsConfigured())
	assert.False(t, NewClient("id", "secret", "", zap.NewNop()).IsConfigured())
}

func TestEventBodyTimedEvent(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	ev := domain.CanonicalEvent{
		IdentityKey:    "Standup_2024-01-01T08:00:00Z_Work",
		Title:          "Standup",
		Start:          time.Date(2024, 1, 1, 9, 0, 0, 0, berlin),
		End:            time.Date(2024, 1, 1, 9, 30, 0, 0, berlin),
		Location:       "Room 1",
		Notes:          "weekly sync",
		SourceCalendar: "Work",
	}

	body := eventBody(ev)
	assert.Equal(t, "Standup", body.Summary)
	assert.Equal(t, "weekly sync", body.Description)
	assert.Equal(t, "Room 1", body.Location)
	assert.Equal(t, "2024-01-01T09:00:00+01:00", body.Start.DateTime)
	assert.Equal(t, "Europe/Berlin", body.Start.TimeZone)
	assert.Empty(t, body.Start.Date)

	require.NotNil(t, body.Source)
	assert.Equal(t, "Synced from iCloud (Work)", body.Source.Title)

	require.NotNil(t, body.ExtendedProperties)
	assert.Equal(t, "true", body.ExtendedProperties.Private["icloud_sync"])
	assert.Equal(t, "Work", body.ExtendedProperties.Private["icloud_calendar"])
	assert.Equal(t, ev.IdentityKey, body.ExtendedProperties.Private["icloud_uid"])
}

func TestEventBodyAllDayEvent(t *testing.T) {
	ev := domain.CanonicalEvent{
		Title:          "Holiday",
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		AllDay:         true,
		SourceCalendar: "Work",
	}

	body := eventBody(ev)
	assert.Equal(t, "2024-01-01", body.Start.Date)
	assert.Equal(t, "2024-01-02", body.End.Date)
	assert.Empty(t, body.Start.DateTime)
}

func TestTokenValidity(t *testing.T) {
	valid := &Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}
	assert.True(t, valid.valid())

	expired := &Token{AccessToken: "a", Expiry: time.Now().Add(-time.Minute)}
	assert.False(t, expired.valid())

	closeToExpiry := &Token{AccessToken: "a", Expiry: time.Now().Add(30 * time.Second)}
	assert.False(t, closeToExpiry.valid(), "tokens about to expire must refresh early")
}
