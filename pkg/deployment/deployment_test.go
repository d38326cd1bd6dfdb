package deployment

import "testing"

func TestIsStale_RegressionsAreStale(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusCompleted, StatusInProgress},
		{StatusFailed, StatusInProgress},
		{StatusPaused, StatusPending},
		{StatusInProgress, StatusPending},
	}
	for _, c := range cases {
		if !isStale(c.from, c.to) {
			t.Errorf("isStale(%s, %s) = false, want true", c.from, c.to)
		}
	}
}

func TestIsStale_ForwardAndLateralAreNotStale(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusPending, StatusInProgress},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusPaused},
		{StatusPaused, StatusWaitResume},
		{StatusInProgress, StatusFailed},
	}
	for _, c := range cases {
		if isStale(c.from, c.to) {
			t.Errorf("isStale(%s, %s) = true, want false", c.from, c.to)
		}
	}
}

func TestTerminal_OnlyCompletedFailedError(t *testing.T) {
	want := map[Status]bool{
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusError:      true,
		StatusPending:    false,
		StatusInProgress: false,
		StatusPaused:     false,
		StatusWaitResume: false,
		StatusWaitStart:  false,
		StatusConfirmed:  false,
	}
	for status, want := range want {
		if got := terminal[status]; got != want {
			t.Errorf("terminal[%s] = %v, want %v", status, got, want)
		}
	}
}

func TestGenerateDeploymentHash_Unique(t *testing.T) {
	a := generateDeploymentHash()
	b := generateDeploymentHash()
	if a == b {
		t.Error("expected distinct hashes")
	}
	if len(a) < 10 {
		t.Errorf("hash too short: %q", a)
	}
}
