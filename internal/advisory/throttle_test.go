package advisory

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func TestThrottle_FirstRequest(t *testing.T) {
	th := NewThrottle(0, 0)
	if !th.MayRequest(t0, false, 0) {
		t.Error("a fresh throttle should allow the first automatic request")
	}
	if got := th.State().LastServedBusIndex; got != -1 {
		t.Errorf("LastServedBusIndex = %d, want -1", got)
	}
}

func TestThrottle_Spacing(t *testing.T) {
	th := NewThrottle(0, 0)
	th.Record(t0, 2, false)

	tests := []struct {
		name  string
		after time.Duration
		bus   int
		want  bool
	}{
		{"inside spacing, moved", 44999 * time.Millisecond, 3, false},
		{"inside spacing, same stop", 10 * time.Second, 2, false},
		{"spacing elapsed, moved", 45 * time.Second, 3, true},
		{"spacing elapsed, same stop", 2 * time.Minute, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.MayRequest(t0.Add(tt.after), false, tt.bus); got != tt.want {
				t.Errorf("MayRequest(+%v, bus=%d) = %v, want %v", tt.after, tt.bus, got, tt.want)
			}
		})
	}
}

func TestThrottle_Hibernation(t *testing.T) {
	th := NewThrottle(0, 0)
	th.Record(t0, 2, true)

	if !th.Hibernating(t0.Add(299 * time.Second)) {
		t.Error("should hibernate until T+300s")
	}
	for _, d := range []time.Duration{time.Minute, 4 * time.Minute, 299999 * time.Millisecond} {
		if th.MayRequest(t0.Add(d), false, 7) {
			t.Errorf("MayRequest(+%v) allowed during hibernation", d)
		}
	}

	end := t0.Add(300 * time.Second)
	if th.Hibernating(end) {
		t.Error("hibernation should end at T+300s")
	}
	if !th.MayRequest(end, false, 7) {
		t.Error("MayRequest should allow once hibernation ends and the bus moved")
	}
	if th.MayRequest(end, false, 2) {
		t.Error("MayRequest should still deny the already-served stop")
	}
}

func TestThrottle_ManualBypass(t *testing.T) {
	th := NewThrottle(0, 0)
	th.Record(t0, 4, true)

	now := t0.Add(time.Second)
	if !th.MayRequest(now, true, 4) {
		t.Fatal("manual requests must bypass every rule")
	}
	th.Record(now, 5, false)

	st := th.State()
	if !st.LastRequestAt.Equal(now) || st.LastServedBusIndex != 5 {
		t.Errorf("State after manual = %+v", st)
	}
	if !st.HibernateUntil.Equal(t0.Add(DefaultHibernation)) {
		t.Errorf("a non-quota record must not clear hibernation, got %v", st.HibernateUntil)
	}
}

func TestThrottle_CustomDurations(t *testing.T) {
	th := NewThrottle(time.Second, 10*time.Second)
	th.Record(t0, 0, false)
	if !th.MayRequest(t0.Add(time.Second), false, 1) {
		t.Error("custom spacing of 1s not honored")
	}
	th.Record(t0, 1, true)
	if th.Hibernating(t0.Add(10 * time.Second)) {
		t.Error("custom hibernation of 10s not honored")
	}
}
