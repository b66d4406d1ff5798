package stream

import "testing"

func TestTaskRegistry_CancelInvokesCancelFuncOnce(t *testing.T) {
	r := NewTaskRegistry()
	calls := 0
	unregister := r.Register("session-1", func() { calls++ })
	defer unregister()

	if !r.Cancel("session-1") {
		t.Fatal("expected Cancel to find the registered task")
	}
	if !r.Cancel("session-1") {
		t.Fatal("expected a second Cancel call to still report found=true (idempotent)")
	}
	if calls != 1 {
		t.Fatalf("expected the cancel func to run exactly once, ran %d times", calls)
	}
}

func TestTaskRegistry_CancelUnknownSessionReturnsFalse(t *testing.T) {
	r := NewTaskRegistry()
	if r.Cancel("nonexistent") {
		t.Fatal("expected Cancel to return false for a session with no running task")
	}
}

func TestTaskRegistry_IsCancelledReflectsState(t *testing.T) {
	r := NewTaskRegistry()
	unregister := r.Register("session-1", func() {})
	defer unregister()

	if r.IsCancelled("session-1") {
		t.Fatal("expected a freshly registered task to not be cancelled")
	}
	r.Cancel("session-1")
	if !r.IsCancelled("session-1") {
		t.Fatal("expected IsCancelled to report true after Cancel")
	}
}

func TestTaskRegistry_IsCancelledUnknownSessionReturnsFalse(t *testing.T) {
	r := NewTaskRegistry()
	if r.IsCancelled("nonexistent") {
		t.Fatal("expected IsCancelled to return false for an unregistered session")
	}
}

func TestTaskRegistry_UnregisterRemovesEntry(t *testing.T) {
	r := NewTaskRegistry()
	unregister := r.Register("session-1", func() {})
	unregister()

	if r.Cancel("session-1") {
		t.Fatal("expected Cancel to return false after the task was unregistered")
	}
}
