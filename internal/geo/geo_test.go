package geo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		unit Unit
		want float64
	}{
		{name: "miles", unit: Miles, want: 347.4},
		{name: "kilometers", unit: Kilometers, want: 559.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(37.7749, -122.4194, 34.0522, -118.2437, tt.unit)
			if got != tt.want {
				t.Fatalf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := Distance(37.7749, -122.4194, 37.7749, -122.4194, Miles); got != 0 {
		t.Fatalf("expected zero distance for identical points, got %v", got)
	}
}

func TestFormatDistance(t *testing.T) {
	cases := map[float64]string{
		0.05: "<0.1",
		0.4:  "0.4",
		3.6:  "4",
		12.2: "12",
	}
	for in, want := range cases {
		if got := FormatDistance(in); got != want {
			t.Fatalf("FormatDistance(%v) = %q, want %q", in, got, want)
		}
	}
}

type fakeLocator struct {
	mu    sync.Mutex
	calls int
	pos   Position
	err   error
}

func (f *fakeLocator) CurrentPosition(ctx context.Context) (Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pos, f.err
}

func TestCurrentReturnsPosition(t *testing.T) {
	state := Current(context.Background(), &fakeLocator{pos: Position{Latitude: 40.7128, Longitude: -74.006, Accuracy: 12}})
	if state.Error != "" {
		t.Fatalf("unexpected error: %s", state.Error)
	}
	if state.Latitude == nil || *state.Latitude != 40.7128 || *state.Longitude != -74.006 {
		t.Fatalf("unexpected coordinates: %+v", state)
	}
}

func TestCurrentMapsErrorCodes(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{code: PermissionDenied, want: "Location access denied. Please enable location services."},
		{code: PositionUnavailable, want: "Location information is unavailable."},
		{code: Timeout, want: "Location request timed out."},
		{code: 42, want: "An unknown error occurred while getting location."},
	}
	for _, tt := range tests {
		state := Current(context.Background(), &fakeLocator{err: &PositionError{Code: tt.code}})
		if state.Error != tt.want {
			t.Fatalf("code %d: got %q, want %q", tt.code, state.Error, tt.want)
		}
		if state.Latitude != nil {
			t.Fatalf("code %d: expected no coordinates", tt.code)
		}
	}
}

func TestCurrentWithoutLocator(t *testing.T) {
	state := Current(context.Background(), nil)
	if state.Error != "Geolocation is not supported by this browser." {
		t.Fatalf("unexpected message: %q", state.Error)
	}
}

func TestErrorMessageFallsBackToUnknown(t *testing.T) {
	if got := ErrorMessage(errors.New("boom")); got != "An unknown error occurred while getting location." {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestWatchStopsWhenContextDone(t *testing.T) {
	locator := &fakeLocator{pos: Position{Latitude: 1, Longitude: 2}}
	ctx, cancel := context.WithCancel(context.Background())

	updates := make(chan State, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, locator, 5*time.Millisecond, func(s State) {
			select {
			case updates <- s:
			default:
			}
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case s := <-updates:
			if s.Latitude == nil || *s.Latitude != 1 {
				t.Fatalf("unexpected update: %+v", s)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for watch update")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
