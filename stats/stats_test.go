package stats

import (
	"strings"
	"testing"
)

type fakeStats struct {
	Faults Counter_t
	Sends Counter_t
	Sched Cycles_t
}

func TestCounterIncAccumulates(t *testing.T) {
	var c Counter_t
	c.Inc()
	c.Inc()
	c.Inc()
	if int64(c) != 3 {
		t.Fatalf("Counter_t = %d, want 3", int64(c))
	}
}

func TestStats2StringListsEveryField(t *testing.T) {
	var fs fakeStats
	fs.Faults.Inc()
	fs.Sends.Inc()
	s := Stats2String(fs)
	if !strings.Contains(s, "Faults") || !strings.Contains(s, "Sends") || !strings.Contains(s, "Sched") {
		t.Fatalf("Stats2String missing a field name: %q", s)
	}
}

func TestDumpProducesOneSamplePerCounterField(t *testing.T) {
	var fs fakeStats
	fs.Faults.Inc()
	fs.Faults.Inc()
	fs.Sends.Inc()
	p := Dump(fs)
	if len(p.Sample) != 3 {
		t.Fatalf("len(Sample) = %d, want 3", len(p.Sample))
	}
	total := int64(0)
	for _, s := range p.Sample {
		total += s.Value[0]
	}
	if total != 3 {
		t.Fatalf("total counter value = %d, want 3 (Faults=2, Sends=1, Sched=0)", total)
	}
}
