package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codr1/ChargeEase/internal/cache"
	"github.com/codr1/ChargeEase/internal/models"
	"github.com/codr1/ChargeEase/internal/realtime"
	"github.com/codr1/ChargeEase/internal/testutil"
)

const marinaStation = "9b2f6c1e-0d6a-4d0e-9a5e-1f0c2b7a1003"

func TestParseTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
		err   error
	}{
		{"chargeease/stations/abc/connectors", "abc", nil},
		{"chargeease/stations//connectors", "", ErrBadTopic},
		{"chargeease/stations/abc", "", ErrBadTopic},
		{"chargeease/bookings/abc/connectors", "", ErrBadTopic},
	}
	for _, tt := range tests {
		got, err := ParseTopic(tt.topic)
		if !errors.Is(err, tt.err) || got != tt.want {
			t.Errorf("ParseTopic(%q) = %q, %v; want %q, %v", tt.topic, got, err, tt.want, tt.err)
		}
	}
}

func TestParseReport(t *testing.T) {
	report, err := ParseReport([]byte(`{"connectorType":"CCS","available":1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if report.ConnectorType != "CCS" || report.Available != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for _, payload := range []string{`not json`, `{"available":2}`} {
		if _, err := ParseReport([]byte(payload)); !errors.Is(err, ErrBadPayload) {
			t.Errorf("expected ErrBadPayload for %q, got %v", payload, err)
		}
	}
}

func TestApplyClampsAndBroadcasts(t *testing.T) {
	database := testutil.NewTestDB(t)
	stations := cache.NewStations(database.Queries)
	hub := realtime.NewHub(nil)
	defer hub.Close()
	applier := NewApplier(database, stations, hub)
	ctx := context.Background()

	// Prime the cache so a stale snapshot would be visible.
	before, err := stations.Get(ctx, marinaStation)
	if err != nil {
		t.Fatalf("load station: %v", err)
	}
	if before.Availability.Status != models.StatusBusy {
		t.Fatalf("expected seeded Marina to be Busy, got %q", before.Availability.Status)
	}

	updates, cancel := hub.Subscribe(marinaStation)
	defer cancel()

	if err := applier.Handle(ctx, "chargeease/stations/"+marinaStation+"/connectors", []byte(`{"connectorType":"CCS","available":9}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	after, err := stations.Get(ctx, marinaStation)
	if err != nil {
		t.Fatalf("reload station: %v", err)
	}
	ccs, _ := after.Connector("CCS")
	if ccs.Available != ccs.Count {
		t.Fatalf("expected available clamped to %d, got %d", ccs.Count, ccs.Available)
	}
	if after.Availability.Status != models.StatusAvailable {
		t.Fatalf("expected Available, got %q", after.Availability.Status)
	}

	select {
	case update := <-updates:
		if update.Availability.AvailableConnectors != ccs.Count {
			t.Fatalf("unexpected broadcast: %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	if err := applier.Apply(ctx, marinaStation, Report{ConnectorType: "CCS", Available: -3}); err != nil {
		t.Fatalf("apply negative: %v", err)
	}
	after, _ = stations.Get(ctx, marinaStation)
	if ccs, _ = after.Connector("CCS"); ccs.Available != 0 {
		t.Fatalf("expected negative count clamped to 0, got %d", ccs.Available)
	}
}

func TestApplyUnknownConnector(t *testing.T) {
	database := testutil.NewTestDB(t)
	applier := NewApplier(database, cache.NewStations(database.Queries), realtime.NewHub(nil))

	err := applier.Apply(context.Background(), marinaStation, Report{ConnectorType: "Tesla", Available: 1})
	if !errors.Is(err, ErrUnknownConnector) {
		t.Fatalf("expected ErrUnknownConnector, got %v", err)
	}
}
