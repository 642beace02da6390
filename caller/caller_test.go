package caller

import "testing"

func callSiteA(dc *Distinct_caller_t) (bool, string) { return dc.Distinct() }
func callSiteB(dc *Distinct_caller_t) (bool, string) { return dc.Distinct() }

func TestDistinctReportsFalseWhenDisabled(t *testing.T) {
	dc := &Distinct_caller_t{}
	fresh, _ := dc.Distinct()
	if fresh {
		t.Fatalf("Distinct() reported fresh while disabled")
	}
	if dc.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", dc.Len())
	}
}

func TestDistinctFirstCallIsFreshSecondIsNot(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}
	var fresh [2]bool
	var trace [2]string
	for i := range fresh {
		fresh[i], trace[i] = callSiteA(dc)
	}
	if !fresh[0] || trace[0] == "" {
		t.Fatalf("first call from a chain should be fresh with a trace")
	}
	if fresh[1] {
		t.Fatalf("second call from the same chain should not be fresh")
	}
}

func TestDistinctTracksSeparateCallChainsIndependently(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}
	freshA, _ := callSiteA(dc)
	freshB, _ := callSiteB(dc)
	if !freshA || !freshB {
		t.Fatalf("distinct call chains should both be fresh")
	}
	if dc.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", dc.Len())
	}
}

func TestDistinctWhitelistedCallerNeverReportsFresh(t *testing.T) {
	dc := &Distinct_caller_t{
		Enabled: true,
		Whitel:  map[string]bool{"github.com/Redstone-OS/forge/caller.callSiteA": true},
	}
	fresh, _ := callSiteA(dc)
	if fresh {
		t.Fatalf("whitelisted caller should never report fresh")
	}
}
