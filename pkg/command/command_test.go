package command

import "testing"

func TestPriorityRank(t *testing.T) {
	cases := []struct {
		p    Priority
		want int16
	}{
		{PriorityCritical, 3},
		{PriorityHigh, 2},
		{PriorityNormal, 1},
		{PriorityLow, 0},
	}
	for _, c := range cases {
		if got := c.p.rank(); got != c.want {
			t.Errorf("%s.rank() = %d, want %d", c.p, got, c.want)
		}
	}
}

func TestCanTransition_ForwardPaths(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusSent, true},
		{StatusPending, StatusCancelled, true},
		{StatusSent, StatusRunning, true},
		{StatusSent, StatusCompleted, true},
		{StatusSent, StatusFailed, true},
		{StatusSent, StatusTimedOut, true},
		{StatusSent, StatusCancelled, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusTimedOut, true},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanTransition_RejectsBackwardsAndTerminal(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusSent, StatusPending},      // backwards
		{StatusCompleted, StatusRunning}, // out of a terminal status
		{StatusFailed, StatusSent},
		{StatusTimedOut, StatusRunning},
		{StatusCancelled, StatusPending},
		{StatusRunning, StatusPending},   // skips backwards past sent
		{StatusRunning, StatusCancelled}, // cancellation only from pending/sent
	}
	for _, c := range cases {
		if canTransition(c.from, c.to) {
			t.Errorf("canTransition(%s, %s) = true, want false", c.from, c.to)
		}
	}
}
