package systems

import "testing"

func TestTickTimer_FlushRunsOnce(t *testing.T) {
	timer := NewTickTimer()
	calls := 0
	timer.RequestFrame(func() { calls++ })
	timer.RequestFrame(func() { calls++ })

	if got := timer.Flush(); got != 2 {
		t.Errorf("Flush() = %d, want 2", got)
	}
	if got := timer.Flush(); got != 0 {
		t.Errorf("second Flush() = %d, want 0", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestTickTimer_RequestDuringFlushDeferred(t *testing.T) {
	timer := NewTickTimer()
	order := []string{}
	timer.RequestFrame(func() {
		order = append(order, "first")
		timer.RequestFrame(func() { order = append(order, "nested") })
	})

	timer.Flush()
	if len(order) != 1 {
		t.Fatalf("nested callback ran in the same flush: %v", order)
	}
	if timer.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", timer.Pending())
	}
	timer.Flush()
	if len(order) != 2 || order[1] != "nested" {
		t.Errorf("order = %v", order)
	}
}

func TestTickTimer_Cancel(t *testing.T) {
	timer := NewTickTimer()
	ran := false
	h := timer.RequestFrame(func() { ran = true })
	timer.CancelFrame(h)
	timer.CancelFrame(h)
	timer.CancelFrame(999)

	if timer.Flush() != 0 || ran {
		t.Error("cancelled callback executed")
	}
	if timer.RequestFrame(nil) != 0 {
		t.Error("nil callback should return zero handle")
	}
}

func TestTickTimer_CancelSiblingDuringFlush(t *testing.T) {
	timer := NewTickTimer()
	var second FrameHandle
	ran := false
	timer.RequestFrame(func() { timer.CancelFrame(second) })
	second = timer.RequestFrame(func() { ran = true })

	if got := timer.Flush(); got != 1 {
		t.Errorf("Flush() = %d, want 1", got)
	}
	if ran {
		t.Error("callback cancelled by an earlier callback still ran")
	}
}
