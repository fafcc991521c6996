package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestFileLogger(t *testing.T) *FileLogger {
	t.Helper()

	config := &Config{
		Enabled:  true,
		DeviceID: "test-device",
		Type:     FileAuditType,
		Options: map[string]interface{}{
			"file_path": filepath.Join(t.TempDir(), "audit.log"),
		},
	}

	logger, err := NewFileLogger(config)
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestFileLoggerLogAndQuery(t *testing.T) {
	logger := newTestFileLogger(t)

	err := logger.Log("set_key", true, map[string]interface{}{
		"usage":   3,
		"backend": "ufs-ice",
		"status":  0,
	})
	if err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}

	err = logger.Log("wipe_key", false, map[string]interface{}{
		"usage":   1,
		"backend": "standard",
		"status":  -8,
	})
	if err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}

	result, err := logger.Query(QueryOptions{})
	if err != nil {
		t.Fatalf("Failed to query events: %v", err)
	}
	if result.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", result.TotalCount)
	}

	// Newest first
	if result.Events[0].Action != "wipe_key" {
		t.Errorf("First event action = %q, want %q", result.Events[0].Action, "wipe_key")
	}
}

func TestFileLoggerPromotesMetadata(t *testing.T) {
	logger := newTestFileLogger(t)

	err := logger.Log("update_key", false, map[string]interface{}{
		"usage":   4,
		"backend": "sdcc-ice",
		"status":  -9,
		"error":   "library unavailable",
	})
	if err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}

	result, err := logger.Query(QueryOptions{})
	if err != nil {
		t.Fatalf("Failed to query events: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("Got %d events, want 1", len(result.Events))
	}

	event := result.Events[0]
	if event.Usage != 4 {
		t.Errorf("Usage = %d, want 4", event.Usage)
	}
	if event.Backend != "sdcc-ice" {
		t.Errorf("Backend = %q, want %q", event.Backend, "sdcc-ice")
	}
	if event.Status == nil || *event.Status != -9 {
		t.Errorf("Status = %v, want -9", event.Status)
	}
	if event.Error != "library unavailable" {
		t.Errorf("Error = %q, want %q", event.Error, "library unavailable")
	}
	if event.ID == "" {
		t.Error("Event ID is empty")
	}
	if event.DeviceID != "test-device" {
		t.Errorf("DeviceID = %q, want %q", event.DeviceID, "test-device")
	}
}

func TestFileLoggerQueryFilters(t *testing.T) {
	logger := newTestFileLogger(t)

	for _, e := range []struct {
		action  string
		success bool
		backend string
	}{
		{"set_key", true, "ufs-ice"},
		{"set_key", false, "standard"},
		{"wipe_key", true, "ufs-ice"},
	} {
		if err := logger.Log(e.action, e.success, map[string]interface{}{"backend": e.backend}); err != nil {
			t.Fatalf("Failed to log event: %v", err)
		}
	}

	result, err := logger.Query(QueryOptions{Action: "set_key"})
	if err != nil {
		t.Fatalf("Failed to query by action: %v", err)
	}
	if result.Filtered != 2 {
		t.Errorf("Filtered by action = %d, want 2", result.Filtered)
	}

	success := true
	result, err = logger.Query(QueryOptions{Success: &success})
	if err != nil {
		t.Fatalf("Failed to query by success: %v", err)
	}
	if result.Filtered != 2 {
		t.Errorf("Filtered by success = %d, want 2", result.Filtered)
	}

	result, err = logger.Query(QueryOptions{Backend: "ufs-ice", Action: "wipe_key"})
	if err != nil {
		t.Fatalf("Failed to query by backend and action: %v", err)
	}
	if result.Filtered != 1 {
		t.Errorf("Filtered by backend and action = %d, want 1", result.Filtered)
	}
}

func TestFileLoggerQueryTimeRange(t *testing.T) {
	logger := newTestFileLogger(t)

	if err := logger.Log("set_key", true, nil); err != nil {
		t.Fatalf("Failed to log event: %v", err)
	}

	future := time.Now().UTC().Add(time.Hour)
	result, err := logger.Query(QueryOptions{Since: &future})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if result.Filtered != 0 {
		t.Errorf("Filtered with future Since = %d, want 0", result.Filtered)
	}

	past := time.Now().UTC().Add(-time.Hour)
	result, err = logger.Query(QueryOptions{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if result.Filtered != 1 {
		t.Errorf("Filtered with past Since = %d, want 1", result.Filtered)
	}
}

func TestNewLoggerSelection(t *testing.T) {
	logger, err := NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger(nil) failed: %v", err)
	}
	if _, ok := logger.(*NoOpLogger); !ok {
		t.Errorf("NewLogger(nil) = %T, want *NoOpLogger", logger)
	}

	logger, err = NewLogger(&Config{Enabled: false, Type: FileAuditType})
	if err != nil {
		t.Fatalf("NewLogger(disabled) failed: %v", err)
	}
	if _, ok := logger.(*NoOpLogger); !ok {
		t.Errorf("NewLogger(disabled) = %T, want *NoOpLogger", logger)
	}

	if _, err = NewLogger(&Config{Enabled: true, Type: "bogus"}); err == nil {
		t.Error("NewLogger accepted an unknown provider")
	}
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()

	if err := logger.Log("set_key", true, nil); err != nil {
		t.Errorf("Log failed: %v", err)
	}
	result, err := logger.Query(QueryOptions{})
	if err != nil {
		t.Errorf("Query failed: %v", err)
	}
	if result.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0", result.TotalCount)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
