package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tazhate/icalsync/config"
	"github.com/tazhate/icalsync/internal/domain"
)

func (s *Server) tools() []Tool {
	emptySchema := InputSchema{Type: "object", Properties: map[string]Property{}}

	return []Tool{
		{
			Name:        "list_icloud_calendars",
			Description: "List all available iCloud calendars",
			InputSchema: emptySchema,
		},
		{
			Name:        "get_icloud_events",
			Description: "Get events from specified iCloud calendars within a date range",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"calendar_names": {
						Type:        "array",
						Items:       &Property{Type: "string"},
						Description: "List of calendar names to get events from",
					},
					"days_back":    {Type: "integer", Description: "Number of days back from today to include"},
					"days_forward": {Type: "integer", Description: "Number of days forward from today to include"},
				},
				Required: []string{"calendar_names"},
			},
		},
		{
			Name:        "list_google_calendars",
			Description: "List calendars of the connected Google account",
			InputSchema: emptySchema,
		},
		{
			Name:        "configure_sync",
			Description: "Configure sync settings including enabled calendars and intervals",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sync_enabled":        {Type: "boolean", Description: "Enable or disable automatic sync"},
					"sync_interval_hours": {Type: "integer", Description: "Hours between automatic syncs"},
					"calendars_to_sync": {
						Type:        "array",
						Items:       &Property{Type: "string"},
						Description: "List of calendar names to sync",
					},
					"google_calendar_id":          {Type: "string", Description: "Target Google Calendar ID"},
					"days_back":                   {Type: "integer", Description: "Days back to sync"},
					"days_forward":                {Type: "integer", Description: "Days forward to sync"},
					"google_calendar_integration": {Type: "boolean", Description: "Enable writes to Google Calendar"},
					"sync_direction":              {Type: "string", Description: "Sync direction", Enum: []string{config.SyncDirectionICloudToGoogle}},
					"delete_removed_events":       {Type: "boolean", Description: "Delete remote events removed from the source"},
					"update_existing_events":      {Type: "boolean", Description: "Update remote events whose content changed"},
					"auto_start_sync":             {Type: "boolean", Description: "Auto-start the scheduler on server startup"},
					"identity_window_days":        {Type: "integer", Description: "Days a same-titled event may move and still count as the same appointment"},
				},
			},
		},
		{
			Name:        "start_sync",
			Description: "Start the automatic sync scheduler",
			InputSchema: emptySchema,
		},
		{
			Name:        "stop_sync",
			Description: "Stop the automatic sync scheduler",
			InputSchema: emptySchema,
		},
		{
			Name:        "manual_sync",
			Description: "Run sync immediately with optional dry-run mode",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"dry_run": {Type: "boolean", Description: "If true, show what would be synced without actually syncing"},
				},
			},
		},
		{
			Name:        "sync_status",
			Description: "Get current sync status and statistics",
			InputSchema: emptySchema,
		},
		{
			Name:        "reset_sync_state",
			Description: "Reset sync state - all events will be treated as new on next sync",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"confirm": {Type: "boolean", Description: "Must be true to confirm the reset"},
				},
				Required: []string{"confirm"},
			},
		},
		{
			Name:        "test_google_calendar",
			Description: "Verify Google Calendar access by creating and deleting a probe event",
			InputSchema: emptySchema,
		},
	}
}

func (s *Server) callTool(ctx context.Context, name string, args map[string]interface{}) (string, bool) {
	switch name {
	case "list_icloud_calendars":
		return s.listICloudCalendars(ctx)
	case "get_icloud_events":
		return s.getICloudEvents(ctx, args)
	case "list_google_calendars":
		return s.listGoogleCalendars(ctx)
	case "configure_sync":
		return s.configureSync(args)
	case "start_sync":
		return s.startSync()
	case "stop_sync":
		return s.stopSync()
	case "manual_sync":
		return s.manualSync(ctx, args)
	case "sync_status":
		return prettyJSON(s.manager.Status()), false
	case "reset_sync_state":
		return s.resetSyncState(args)
	case "test_google_calendar":
		return s.testGoogleCalendar(ctx)
	default:
		return "Unknown tool: " + name, true
	}
}

func (s *Server) listICloudCalendars(ctx context.Context) (string, bool) {
	calendars, err := s.manager.Calendars(ctx)
	if err != nil {
		return fmt.Sprintf("Error listing iCloud calendars: %v", err), true
	}
	return "Available iCloud calendars:\n\n" + prettyJSON(calendars), false
}

func (s *Server) getICloudEvents(ctx context.Context, args map[string]interface{}) (string, bool) {
	names := stringSlice(args["calendar_names"])
	if len(names) == 0 {
		return "calendar_names is required", true
	}
	daysBack := intArg(args, "days_back", 7)
	daysForward := intArg(args, "days_forward", 30)

	events, err := s.manager.Events(ctx, names, daysBack, daysForward)
	if err != nil {
		return fmt.Sprintf("Error getting iCloud events: %v", err), true
	}
	return fmt.Sprintf("Events from calendars %v:\n\n%s", names, prettyJSON(events)), false
}

func (s *Server) listGoogleCalendars(ctx context.Context) (string, bool) {
	if !s.google.IsConfigured() {
		return "Google Calendar is not configured", true
	}
	calendars, err := s.google.ListCalendars(ctx)
	if err != nil {
		return fmt.Sprintf("Error listing Google calendars: %v", err), true
	}
	return "Available Google calendars:\n\n" + prettyJSON(calendars), false
}

func (s *Server) configureSync(args map[string]interface{}) (string, bool) {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("Invalid arguments: %v", err), true
	}
	var patch config.SettingsPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return fmt.Sprintf("Invalid arguments: %v", err), true
	}

	updated, err := s.manager.Configure(patch)
	if err != nil {
		return fmt.Sprintf("Error updating configuration: %v", err), true
	}
	return "Sync configuration updated:\n\n" + prettyJSON(updated), false
}

func (s *Server) startSync() (string, bool) {
	if err := s.manager.StartScheduler(); err != nil {
		return fmt.Sprintf("Error starting scheduler: %v", err), true
	}
	interval := s.manager.Settings().SyncIntervalHours
	return fmt.Sprintf("Automatic sync scheduler started. Sync will run every %d hours.", interval), false
}

func (s *Server) stopSync() (string, bool) {
	s.manager.StopScheduler()
	return "Automatic sync scheduler stopped.", false
}

func (s *Server) manualSync(ctx context.Context, args map[string]interface{}) (string, bool) {
	dryRun, _ := args["dry_run"].(bool)
	report, err := s.manager.Sync(ctx, dryRun)
	if err != nil {
		if report != nil {
			return fmt.Sprintf("Sync failed: %v\n\nPartial result:\n\n%s", err, prettyJSON(report)), true
		}
		return fmt.Sprintf("Sync failed: %v", err), true
	}
	return "Manual sync result:\n\n" + prettyJSON(report), false
}

func (s *Server) resetSyncState(args map[string]interface{}) (string, bool) {
	confirm, _ := args["confirm"].(bool)
	if !confirm {
		return "Reset not confirmed. Set 'confirm' to true to reset sync state.", false
	}
	if err := s.manager.ResetState(); err != nil {
		return fmt.Sprintf("Error resetting sync state: %v", err), true
	}
	return "Sync state reset. All events will be considered new on next sync.", false
}

func (s *Server) testGoogleCalendar(ctx context.Context) (string, bool) {
	if !s.google.IsConfigured() {
		return "Google Calendar is not configured", true
	}

	calendarID := s.manager.Settings().GoogleCalendarID
	now := time.Now()
	probe := domain.CanonicalEvent{
		IdentityKey:    "connectivity-test",
		Title:          "icalsync connectivity test",
		Start:          now,
		End:            now.Add(30 * time.Minute),
		Notes:          "Created by test_google_calendar; safe to delete.",
		SourceCalendar: "icalsync",
	}

	remoteID, err := s.google.CreateEvent(ctx, calendarID, probe)
	if err != nil {
		return fmt.Sprintf("Error creating probe event: %v", err), true
	}
	if err := s.google.DeleteEvent(ctx, calendarID, remoteID); err != nil {
		return fmt.Sprintf("Probe event %s created but could not be deleted: %v", remoteID, err), true
	}
	return fmt.Sprintf("Google Calendar access verified against calendar %q.", calendarID), false
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}
