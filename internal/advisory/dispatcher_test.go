package advisory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"arcticbus/internal/route"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDispatcher(b Backend) (*Dispatcher, *clock) {
	c := &clock{now: t0}
	svc := NewService(b, time.Second, quietLogger())
	svc.now = c.Now
	d := NewDispatcher(NewThrottle(0, 0), svc, route.Default(), 0, nil, quietLogger())
	d.now = c.Now
	return d, c
}

func TestDispatcher_Auto(t *testing.T) {
	fb := &fakeBackend{out: `{"message":"ok","eta":"4 mins","urgency":"high"}`}
	d, c := newTestDispatcher(fb)
	ctx := context.Background()

	d.Auto(ctx, 1, 5)
	if fb.calls != 1 {
		t.Fatalf("calls = %d, want 1", fb.calls)
	}
	p, ok := d.Latest()
	if !ok || p.IsFallback {
		t.Fatalf("Latest = %+v, %v", p, ok)
	}

	c.Advance(10 * time.Second)
	d.Auto(ctx, 2, 5)
	if fb.calls != 1 {
		t.Errorf("auto inside spacing should be throttled, calls = %d", fb.calls)
	}

	c.Advance(45 * time.Second)
	d.Auto(ctx, 2, 5)
	if fb.calls != 2 {
		t.Errorf("auto after spacing should run, calls = %d", fb.calls)
	}
}

func TestDispatcher_QuotaHibernates(t *testing.T) {
	fb := &fakeBackend{err: genai.APIError{Code: 429}}
	d, c := newTestDispatcher(fb)
	ctx := context.Background()

	d.Auto(ctx, 1, 5)
	p, _ := d.Latest()
	if !p.IsFallback {
		t.Error("quota failure should produce fallback advice")
	}
	if !d.Hibernating(c.Now()) {
		t.Fatal("dispatcher should hibernate after a quota error")
	}

	c.Advance(2 * time.Minute)
	d.Auto(ctx, 3, 5)
	if fb.calls != 1 {
		t.Errorf("auto during hibernation should be skipped, calls = %d", fb.calls)
	}

	if _, err := d.Manual(ctx, 3, 5); err != nil {
		t.Fatalf("Manual during hibernation: %v", err)
	}
	if fb.calls != 2 {
		t.Errorf("manual should bypass hibernation, calls = %d", fb.calls)
	}
	st := d.throttle.State()
	if !st.LastRequestAt.Equal(c.Now()) || st.LastServedBusIndex != 3 {
		t.Errorf("manual should update throttle state, got %+v", st)
	}
}

func TestDispatcher_ManualCooldown(t *testing.T) {
	fb := &fakeBackend{out: `{"message":"ok","eta":"4 mins","urgency":"low"}`}
	d, c := newTestDispatcher(fb)
	ctx := context.Background()

	if _, err := d.Manual(ctx, 0, 5); err != nil {
		t.Fatal(err)
	}
	if rem := d.CooldownRemaining(c.Now()); rem != DefaultManualCooldown {
		t.Errorf("CooldownRemaining = %v, want %v", rem, DefaultManualCooldown)
	}

	c.Advance(29 * time.Second)
	if _, err := d.Manual(ctx, 0, 5); !errors.Is(err, ErrCooldown) {
		t.Errorf("second Manual err = %v, want ErrCooldown", err)
	}

	c.Advance(time.Second)
	if _, err := d.Manual(ctx, 0, 5); err != nil {
		t.Errorf("Manual after cooldown: %v", err)
	}
	if fb.calls != 2 {
		t.Errorf("calls = %d, want 2", fb.calls)
	}
}

type blockingBackend struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Generate(ctx context.Context, _, _ string) ([]byte, error) {
	close(b.started)
	<-b.release
	return []byte(`{"message":"ok","eta":"4 mins","urgency":"low"}`), nil
}

func TestDispatcher_InFlight(t *testing.T) {
	bb := &blockingBackend{started: make(chan struct{}), release: make(chan struct{})}
	d, _ := newTestDispatcher(bb)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		d.Auto(ctx, 1, 5)
		close(done)
	}()
	<-bb.started

	if !d.Busy() {
		t.Error("Busy should be true while a request runs")
	}
	if _, err := d.Manual(ctx, 2, 5); !errors.Is(err, ErrBusy) {
		t.Errorf("Manual while in flight err = %v, want ErrBusy", err)
	}
	// Returns immediately instead of blocking on the backend.
	d.Auto(ctx, 2, 5)

	close(bb.release)
	<-done
	if d.Busy() {
		t.Error("Busy should clear after the request completes")
	}
	if rem := d.CooldownRemaining(t0); rem != 0 {
		t.Errorf("a rejected Manual must not start the countdown, got %v", rem)
	}
}

func TestDispatcher_Listeners(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	var got []Payload
	d.OnAdvice(func(_ context.Context, p Payload) { got = append(got, p) })

	p, err := d.Manual(context.Background(), 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != p {
		t.Errorf("listener got %+v, want [%+v]", got, p)
	}
	if p.Urgency != UrgencyHigh || p.ETA != "0 mins" {
		t.Errorf("Payload = %+v", p)
	}
}

func TestDispatcher_BadIndex(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	if _, err := d.Manual(context.Background(), 99, 5); !errors.Is(err, route.ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
}
