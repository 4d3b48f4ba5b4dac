package model

import "testing"

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from RunStatus
		to   RunStatus
		want bool
	}{
		{"queued_to_running", RunQueued, RunRunning, true},
		{"queued_to_success", RunQueued, RunSuccess, false},
		{"queued_to_failed", RunQueued, RunFailed, false},
		{"running_to_success", RunRunning, RunSuccess, true},
		{"running_to_failed", RunRunning, RunFailed, true},
		{"running_to_running", RunRunning, RunRunning, false},
		{"success_is_terminal", RunSuccess, RunRunning, false},
		{"failed_is_terminal", RunFailed, RunRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
