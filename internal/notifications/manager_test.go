package notifications

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mrcode/bioclear/internal/models"
)

type sent struct {
	title, message string
}

func newTestManager(settings *models.Settings) (*Manager, *[]sent, *time.Time) {
	var out []sent
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	m := NewManager(settings, nil)
	m.SetSender(func(title, message string) error {
		out = append(out, sent{title, message})
		return nil
	})
	m.now = func() time.Time { return now }
	return m, &out, &now
}

func enabledSettings() *models.Settings {
	s := models.DefaultSettings()
	s.EnableNotifications = true
	return s
}

func TestManager_Disabled(t *testing.T) {
	m, out, _ := newTestManager(models.DefaultSettings())

	m.OutOfRange("Alice", []string{"bmi 40.0 outside training range 18-35"})
	m.ProlongedClearance("Alice", 100)

	if len(*out) != 0 {
		t.Errorf("Expected no notifications when disabled, got %d", len(*out))
	}
}

func TestManager_formatTitle(t *testing.T) {
	tests := []struct {
		alertType     string
		expectedTitle string
	}{
		{AlertEstimatorUnavailable, "⚠️ BioClear: estimator unavailable"},
		{AlertOutOfRange, "BioClear: input outside training range"},
		{AlertProlongedClearance, "⏳ BioClear: prolonged clearance"},
		{"other", "BioClear"},
	}

	for _, tt := range tests {
		if got := formatTitle(tt.alertType); got != tt.expectedTitle {
			t.Errorf("formatTitle(%s) = %s, want %s", tt.alertType, got, tt.expectedTitle)
		}
	}
}

func TestManager_Messages(t *testing.T) {
	m, out, _ := newTestManager(enabledSettings())

	m.OutOfRange("Alice", []string{"bmi 40.0 outside training range 18-35", "age 70 outside training range 20-60"})
	m.ProlongedClearance("Bob", 99.66)
	m.EstimatorUnavailable(errors.New("open model.json: no such file"))

	if len(*out) != 3 {
		t.Fatalf("Expected 3 notifications, got %d", len(*out))
	}
	if !strings.Contains((*out)[0].message, "Alice") || !strings.Contains((*out)[0].message, "; ") {
		t.Errorf("Unexpected out-of-range message %q", (*out)[0].message)
	}
	if !strings.Contains((*out)[1].message, "99.7 hours") {
		t.Errorf("Unexpected clearance message %q", (*out)[1].message)
	}
	if !strings.Contains((*out)[2].message, "model.json") {
		t.Errorf("Unexpected unavailable message %q", (*out)[2].message)
	}
}

func TestManager_RepeatWindow(t *testing.T) {
	m, out, now := newTestManager(enabledSettings()) // 15 minute repeat

	m.ProlongedClearance("A", 80)
	m.ProlongedClearance("B", 90) // Suppressed
	*now = now.Add(16 * time.Minute)
	m.ProlongedClearance("C", 95)

	if len(*out) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(*out))
	}
	if !strings.HasPrefix((*out)[1].message, "C ") {
		t.Errorf("Expected second alert for C, got %q", (*out)[1].message)
	}

	// Other alert types are tracked separately
	m.OutOfRange("D", []string{"age 90 outside plausible range 18-80"})
	if len(*out) != 3 {
		t.Errorf("Expected out-of-range alert to pass, got %d notifications", len(*out))
	}
}

func TestManager_NoRepeat(t *testing.T) {
	settings := enabledSettings()
	settings.RepeatAlertMinutes = 0
	m, out, now := newTestManager(settings)

	m.ProlongedClearance("A", 80)
	*now = now.Add(24 * time.Hour)
	m.ProlongedClearance("B", 80)

	if len(*out) != 1 {
		t.Errorf("Expected a single notification without repeat, got %d", len(*out))
	}

	m.ClearAlertState(AlertProlongedClearance)
	m.ProlongedClearance("C", 80)
	if len(*out) != 2 {
		t.Errorf("Expected alert after clearing state, got %d", len(*out))
	}
}

func TestManager_SendFailureNotRecorded(t *testing.T) {
	m, _, _ := newTestManager(enabledSettings())

	calls := 0
	m.SetSender(func(string, string) error {
		calls++
		return errors.New("no notification daemon")
	})

	m.ProlongedClearance("A", 80)
	m.ProlongedClearance("A", 80)

	if calls != 2 {
		t.Errorf("Failed sends should not start the repeat window, got %d calls", calls)
	}
}

func TestManager_SeesSettingsUpdates(t *testing.T) {
	settings := models.DefaultSettings()
	m, out, _ := newTestManager(settings)

	m.ProlongedClearance("A", 80)
	if len(*out) != 0 {
		t.Fatalf("Expected no notification while disabled, got %d", len(*out))
	}

	settings.Update(enabledSettings())
	m.ProlongedClearance("A", 80)
	if len(*out) != 1 {
		t.Errorf("Expected notification after enabling, got %d", len(*out))
	}
}

func TestManager_ConcurrentSettingsUpdate(t *testing.T) {
	settings := enabledSettings()
	m := NewManager(settings, nil)
	m.SetSender(func(string, string) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			next := enabledSettings()
			next.RepeatAlertMinutes = i
			settings.Update(next)
		}(i)
		go func() {
			defer wg.Done()
			m.ProlongedClearance("A", 80)
			m.ClearAlertState("")
		}()
	}
	wg.Wait()
}

func TestManager_SendTestNotification(t *testing.T) {
	m, out, _ := newTestManager(models.DefaultSettings())

	if err := m.SendTestNotification(); err != nil {
		t.Fatalf("SendTestNotification failed: %v", err)
	}
	if len(*out) != 1 || (*out)[0].title != "BioClear" {
		t.Errorf("Expected test notification even when disabled, got %+v", *out)
	}
}
