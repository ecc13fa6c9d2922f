package entity

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusPaid},
		{StatusProcessing, StatusPaid},
		{StatusPaid, StatusShipped},
		{StatusShipped, StatusDelivered},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("Expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to OrderStatus }{
		{StatusPaid, StatusPending},
		{StatusPaid, StatusProcessing},
		{StatusPaid, StatusCancelled},
		{StatusProcessing, StatusPending},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusShipped},
		{StatusCancelled, StatusPaid},
		{StatusPending, StatusShipped},
		{StatusPending, StatusDelivered},
		{StatusPaid, StatusPaid},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("Expected %s -> %s to be forbidden", tc.from, tc.to)
		}
	}
}

func TestAllowedSources(t *testing.T) {
	sources := AllowedSources(StatusPaid)
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources for PAID, got %d", len(sources))
	}
	if sources[0] != StatusPending || sources[1] != StatusProcessing {
		t.Errorf("Unexpected sources for PAID: %v", sources)
	}

	if len(AllowedSources(StatusPending)) != 0 {
		t.Error("Expected no sources for PENDING (initial state)")
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []OrderStatus{StatusDelivered, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{StatusPending, StatusProcessing, StatusPaid, StatusShipped} {
		if s.IsTerminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if OrderStatus("PLACED").Valid() {
		t.Error("Expected PLACED to be invalid")
	}
	if !StatusProcessing.Valid() {
		t.Error("Expected PROCESSING to be valid")
	}
}
