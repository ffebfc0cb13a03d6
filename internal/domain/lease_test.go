package domain

import "testing"

func TestLease_State(t *testing.T) {
	tests := []struct {
		name      string
		lease     Lease
		state     LeaseState
		remaining int64
	}{
		{"absent", Lease{Now: 100}, LeaseStateFree, 0},
		{"valid", Lease{Present: true, ExpiresAt: 106, Now: 100}, LeaseStateHeld, 6},
		{"last second", Lease{Present: true, ExpiresAt: 100, Now: 100}, LeaseStateHeld, 0},
		{"expired", Lease{Present: true, ExpiresAt: 99, Now: 100}, LeaseStateExpired, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lease.State(); got != tt.state {
				t.Errorf("State() = %q, want %q", got, tt.state)
			}
			if got := tt.lease.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
		})
	}
}
