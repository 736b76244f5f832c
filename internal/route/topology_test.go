package route

import (
	"errors"
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	top := Default()
	if top.Count() != 11 {
		t.Fatalf("Count() = %d, want 11", top.Count())
	}
	first, err := top.At(0)
	if err != nil {
		t.Fatalf("At(0): %v", err)
	}
	if first.Name != "Iqaluit Airport" {
		t.Errorf("At(0).Name = %q, want %q", first.Name, "Iqaluit Airport")
	}
	last, _ := top.At(10)
	if last.ID != 11 {
		t.Errorf("At(10).ID = %d, want 11", last.ID)
	}
}

func TestAt_OutOfRange(t *testing.T) {
	top := Default()
	for _, i := range []int{-1, 11, 100} {
		if _, err := top.At(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("At(%d) error = %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New("empty", nil); err == nil {
		t.Error("New(nil) should fail")
	}
	dup := []Stop{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}
	if _, err := New("dup", dup); err == nil {
		t.Error("New() with duplicate ids should fail")
	}
}

func TestStops_ReturnsCopy(t *testing.T) {
	top := Default()
	s := top.Stops()
	s[0].Name = "changed"
	again, _ := top.At(0)
	if again.Name == "changed" {
		t.Error("Stops() leaked internal slice")
	}
}

func TestNearest_StopMatchesItself(t *testing.T) {
	top := Default()
	for i, s := range top.Stops() {
		if got := top.Nearest(s.Lat, s.Lng); got != i {
			t.Errorf("Nearest(%s) = %d, want %d", s.Name, got, i)
		}
	}
}

func TestStopsAway(t *testing.T) {
	top := Default() // 11 stops
	tests := []struct {
		name      string
		bus, user int
		want      int
	}{
		{"same stop", 4, 4, 0},
		{"user ahead", 0, 5, 5},
		{"user one ahead", 3, 4, 1},
		{"wraps around", 9, 2, 4},
		{"user just behind", 5, 4, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := top.StopsAway(tt.bus, tt.user); got != tt.want {
				t.Errorf("StopsAway(%d, %d) = %d, want %d", tt.bus, tt.user, got, tt.want)
			}
		})
	}
}

func TestStopsAway_AlwaysInRange(t *testing.T) {
	top := Default()
	n := top.Count()
	for bus := 0; bus < n; bus++ {
		for user := 0; user < n; user++ {
			got := top.StopsAway(bus, user)
			if got < 0 || got >= n {
				t.Fatalf("StopsAway(%d, %d) = %d, outside [0,%d)", bus, user, got, n)
			}
			if (got == 0) != (bus == user) {
				t.Fatalf("StopsAway(%d, %d) = %d, zero iff equal violated", bus, user, got)
			}
		}
	}
}

func TestWrap(t *testing.T) {
	top := Default()
	tests := []struct{ in, want int }{
		{0, 0}, {10, 10}, {11, 0}, {-1, 10}, {-12, 10}, {23, 1},
	}
	for _, tt := range tests {
		if got := top.Wrap(tt.in); got != tt.want {
			t.Errorf("Wrap(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBetween(t *testing.T) {
	top := Default()
	tests := []struct {
		name      string
		bus, user int
		want      []int
	}{
		{"same stop", 3, 3, nil},
		{"adjacent", 3, 4, nil},
		{"forward", 1, 4, []int{2, 3}},
		{"wrapping", 9, 1, []int{10, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := top.Between(tt.bus, tt.user)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Between(%d, %d) = %v, want %v", tt.bus, tt.user, got, tt.want)
			}
			for i := 0; i < top.Count(); i++ {
				want := false
				for _, b := range tt.want {
					if b == i {
						want = true
					}
				}
				if top.InTransit(i, tt.bus, tt.user) != want {
					t.Errorf("InTransit(%d, %d, %d) = %v, want %v", i, tt.bus, tt.user, !want, want)
				}
			}
		})
	}
}
