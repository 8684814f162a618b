package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// TestMockAdvanceFiresInOrder verifies timers fire by deadline during Advance
func TestMockAdvanceFiresInOrder(t *testing.T) {
	m := NewMock(epoch)
	var order []int

	m.AfterFunc(300*time.Millisecond, func() { order = append(order, 3) })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, 1) })
	m.AfterFunc(200*time.Millisecond, func() { order = append(order, 2) })

	m.Advance(250 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("Expected [1 2] after 250ms, got %v", order)
	}

	m.Advance(50 * time.Millisecond)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("Expected third timer at 300ms, got %v", order)
	}

	if !m.Now().Equal(epoch.Add(300 * time.Millisecond)) {
		t.Errorf("Unexpected mock time %v", m.Now())
	}
}

// TestMockNowDuringCallback verifies Now reports the timer deadline inside callbacks
func TestMockNowDuringCallback(t *testing.T) {
	m := NewMock(epoch)
	var seen time.Time
	m.AfterFunc(40*time.Millisecond, func() { seen = m.Now() })

	m.Advance(time.Second)
	if !seen.Equal(epoch.Add(40 * time.Millisecond)) {
		t.Errorf("Expected callback time epoch+40ms, got %v", seen.Sub(epoch))
	}
}

// TestMockStop verifies stopped timers never fire
func TestMockStop(t *testing.T) {
	m := NewMock(epoch)
	fired := false
	timer := m.AfterFunc(10*time.Millisecond, func() { fired = true })

	if !timer.Stop() {
		t.Error("Expected first Stop to report true")
	}
	if timer.Stop() {
		t.Error("Expected second Stop to report false")
	}
	m.Advance(time.Second)
	if fired {
		t.Error("Stopped timer fired")
	}
	if m.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", m.Pending())
	}
}

// TestEveryRepeatsUntilStopped verifies periodic task cadence and cancellation
func TestEveryRepeatsUntilStopped(t *testing.T) {
	m := NewMock(epoch)
	count := 0
	task := Every(m, 100*time.Millisecond, func() { count++ })

	m.Advance(350 * time.Millisecond)
	if count != 3 {
		t.Fatalf("Expected 3 runs in 350ms, got %d", count)
	}

	task.Stop()
	m.Advance(time.Second)
	if count != 3 {
		t.Errorf("Task ran after Stop: %d runs", count)
	}
	if !task.Stopped() {
		t.Error("Expected task to report stopped")
	}
	task.Stop()
}

// TestEveryStopFromCallback verifies a task can cancel itself
func TestEveryStopFromCallback(t *testing.T) {
	m := NewMock(epoch)
	var task *Task
	count := 0
	task = Every(m, 10*time.Millisecond, func() {
		count++
		if count == 2 {
			task.Stop()
		}
	})

	m.Advance(100 * time.Millisecond)
	if count != 2 {
		t.Errorf("Expected 2 runs before self-stop, got %d", count)
	}
	if m.Pending() != 0 {
		t.Errorf("Expected no re-armed timer, got %d pending", m.Pending())
	}
}

// TestAfterRunsOnce verifies one-shot tasks
func TestAfterRunsOnce(t *testing.T) {
	m := NewMock(epoch)
	count := 0
	task := After(m, 2*time.Second, func() { count++ })

	m.Advance(1999 * time.Millisecond)
	if count != 0 {
		t.Fatal("One-shot fired early")
	}
	m.Advance(time.Millisecond)
	if count != 1 {
		t.Fatalf("Expected one run at 2s, got %d", count)
	}
	m.Advance(10 * time.Second)
	if count != 1 || task.Runs() != 1 {
		t.Errorf("One-shot repeated: %d", count)
	}
	if !task.Stopped() {
		t.Error("Expected completed one-shot to report stopped")
	}
}

// TestNilTaskStop verifies Stop on a nil handle is safe
func TestNilTaskStop(t *testing.T) {
	var task *Task
	task.Stop()
}
