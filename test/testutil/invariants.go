package testutil

import (
	"testing"
	"time"

	"github.com/objelect/objelect"
)

// AssertAtMostOneLeader verifies that no two electors claim leadership at the
// same moment. Shutdown electors are skipped.
//
// Parameters:
//   - t: testing handle
//   - electors: electors contending for one election key
func AssertAtMostOneLeader(t *testing.T, electors []*objelect.Elector) {
	t.Helper()

	leaders := make([]string, 0, 1)
	for _, e := range electors {
		if e.State() == objelect.StateShutdown {
			continue
		}
		if e.IsLeader() {
			leaders = append(leaders, e.HolderIdentity())
		}
	}

	if len(leaders) > 1 {
		t.Fatalf("multiple electors claim leadership at once: %v", leaders)
	}
}

// SampleAtMostOneLeader repeatedly checks the at-most-one-leader property
// over the given window. Use it across takeover windows, where a botched
// handoff would briefly show two leaders.
//
// Parameters:
//   - t: testing handle
//   - electors: electors contending for one election key
//   - window: how long to keep sampling
//   - interval: pause between samples
func SampleAtMostOneLeader(t *testing.T, electors []*objelect.Elector, window, interval time.Duration) {
	t.Helper()

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		AssertAtMostOneLeader(t, electors)
		time.Sleep(interval)
	}
}

// AssertLeaderAgreement verifies that every elector that has observed a
// holder agrees on who it is. Electors that have not observed anyone yet
// (empty Leader) are skipped.
//
// Parameters:
//   - t: testing handle
//   - electors: electors contending for one election key
func AssertLeaderAgreement(t *testing.T, electors []*objelect.Elector) {
	t.Helper()

	agreed := ""
	for _, e := range electors {
		observed := e.Leader()
		if observed == "" {
			continue
		}
		if agreed == "" {
			agreed = observed
			continue
		}
		if observed != agreed {
			t.Fatalf("electors disagree on the leader: %q vs %q", agreed, observed)
		}
	}
}
