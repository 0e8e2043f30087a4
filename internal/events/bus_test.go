package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan TelemetryEvent, 1)

	unsub := bus.Subscribe(func(e TelemetryEvent) {
		received <- e
	})
	defer unsub()

	event := TelemetryEvent{
		CameraID:   "entrance",
		Seq:        7,
		People:     3,
		Violations: 1,
		Timestamp:  "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.CameraID != event.CameraID {
		t.Errorf("Expected camera_id %s, got %s", event.CameraID, got.CameraID)
	}
	if got.Seq != event.Seq {
		t.Errorf("Expected seq %d, got %d", event.Seq, got.Seq)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan CameraOnlineEvent, 1)
	received2 := make(chan CameraOnlineEvent, 1)

	unsub1 := bus.Subscribe(func(e CameraOnlineEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e CameraOnlineEvent) {
		received2 <- e
	})
	defer unsub2()

	event := CameraOnlineEvent{
		CameraID: "entrance",
		Name:     "Entrance",
	}
	bus.Publish(event)

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan CameraOfflineEvent, 1)

	unsub := bus.Subscribe(func(e CameraOfflineEvent) {
		received <- e
	})

	bus.Publish(CameraOfflineEvent{CameraID: "entrance"})
	<-received

	unsub()

	bus.Publish(CameraOfflineEvent{CameraID: "garden"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	telemetryReceived := make(chan bool, 1)
	onlineReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ TelemetryEvent) {
		telemetryReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ CameraOnlineEvent) {
		onlineReceived <- true
	})
	defer unsub2()

	// Publish TelemetryEvent
	bus.Publish(TelemetryEvent{CameraID: "entrance"})
	<-telemetryReceived

	select {
	case <-onlineReceived:
		t.Fatal("Online subscriber should NOT have received TelemetryEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	// Publish CameraOnlineEvent
	bus.Publish(CameraOnlineEvent{CameraID: "entrance"})
	<-onlineReceived

	select {
	case <-telemetryReceived:
		t.Fatal("Telemetry subscriber should NOT have received CameraOnlineEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ TelemetryEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(TelemetryEvent{
					CameraID:  "entrance",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	// Read all expected events
	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"Telemetry", TelemetryEvent{CameraID: "entrance", Seq: 1}},
		{"CameraOnline", CameraOnlineEvent{CameraID: "entrance"}},
		{"CameraOffline", CameraOfflineEvent{CameraID: "entrance"}},
		{"LogEntry", LogEntryEvent{Level: "info", Module: "api"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case TelemetryEvent:
				unsub = bus.Subscribe(func(e TelemetryEvent) { received <- e })
			case CameraOnlineEvent:
				unsub = bus.Subscribe(func(e CameraOnlineEvent) { received <- e })
			case CameraOfflineEvent:
				unsub = bus.Subscribe(func(e CameraOfflineEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONSerialization(t *testing.T) {
	fps := 24.7
	tests := []struct {
		name  string
		event any
	}{
		{
			"TelemetryEvent",
			TelemetryEvent{
				CameraID:   "entrance",
				Seq:        42,
				FPS:        &fps,
				People:     3,
				Violations: 1,
				Timestamp:  "2025-01-27T10:30:00Z",
			},
		},
		{
			"CameraOnlineEvent",
			CameraOnlineEvent{
				CameraID:  "entrance",
				Name:      "Entrance",
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
		{
			"CameraOfflineEvent",
			CameraOfflineEvent{
				CameraID:  "entrance",
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if len(result) == 0 {
				t.Fatal("Unmarshaled to empty object")
			}
		})
	}
}

func TestTelemetryEvent_FPSOmittedWhenUnknown(t *testing.T) {
	data, err := json.Marshal(TelemetryEvent{CameraID: "entrance", Seq: 1})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
		t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
	}

	if _, present := result["fps"]; present {
		t.Error("Expected fps to be omitted when telemetry is unknown")
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[TelemetryEvent](bus, ch)
	defer unsub()

	event := TelemetryEvent{
		CameraID: "entrance",
		Seq:      3,
	}
	bus.Publish(event)

	received := <-ch
	telemetryEvent, ok := received.(TelemetryEvent)
	if !ok {
		t.Fatalf("Expected TelemetryEvent, got %T", received)
	}
	if telemetryEvent.CameraID != event.CameraID {
		t.Errorf("Expected camera_id %s, got %s", event.CameraID, telemetryEvent.CameraID)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[CameraOnlineEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(CameraOnlineEvent{CameraID: "entrance"})
		done <- true
	}()

	<-done // Should complete without blocking
}
