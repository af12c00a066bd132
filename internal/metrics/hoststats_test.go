package metrics

import (
	"strings"
	"testing"
)

func TestGatherHostStats(t *testing.T) {
	stats := gatherHostStats()
	if !stats.gathered {
		t.Skip("host stats unavailable in this sandbox (no /proc or restricted syscalls)")
	}
	if stats.cpuPercent < 0 || stats.cpuPercent > 100 {
		t.Errorf("expected cpu percent in [0,100], got %f", stats.cpuPercent)
	}
	if stats.memUsedPct < 0 || stats.memUsedPct > 100 {
		t.Errorf("expected memory used percent in [0,100], got %f", stats.memUsedPct)
	}
}

func TestExpose_IncludesHostStats(t *testing.T) {
	c := NewCollector()
	output := c.Expose()

	if !strings.Contains(output, "httpdrill_host_cpu_percent") {
		t.Error("expected output to contain httpdrill_host_cpu_percent")
	}
	if !strings.Contains(output, "httpdrill_host_memory_used_percent") {
		t.Error("expected output to contain httpdrill_host_memory_used_percent")
	}
	if !strings.Contains(output, "httpdrill_host_load_average") {
		t.Error("expected output to contain httpdrill_host_load_average")
	}
}
