package metrics

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostStats is a point-in-time snapshot of the machine running this control
// plane. A load generator that saturates its own CPU or memory produces
// misleading latency numbers, so exposing these alongside the run gauges
// lets an operator tell a client-side bottleneck apart from a real one.
type hostStats struct {
	cpuPercent float64
	memUsedPct float64
	loadAvg1   float64
	loadAvg5   float64
	loadAvg15  float64
	gathered   bool
}

func gatherHostStats() hostStats {
	var s hostStats

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.cpuPercent = percents[0]
		s.gathered = true
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		s.memUsedPct = vm.UsedPercent
		s.gathered = true
	}

	if avg, err := load.Avg(); err == nil && avg != nil {
		s.loadAvg1 = avg.Load1
		s.loadAvg5 = avg.Load5
		s.loadAvg15 = avg.Load15
		s.gathered = true
	}

	return s
}

func (c *Collector) writeHostStats(sb *strings.Builder, timestamp int64) {
	stats := gatherHostStats()
	if !stats.gathered {
		return
	}

	sb.WriteString("# HELP httpdrill_host_cpu_percent CPU utilization of the host running this control plane\n")
	sb.WriteString("# TYPE httpdrill_host_cpu_percent gauge\n")
	fmt.Fprintf(sb, "httpdrill_host_cpu_percent %.4f %d\n", stats.cpuPercent, timestamp)

	sb.WriteString("# HELP httpdrill_host_memory_used_percent Memory utilization of the host running this control plane\n")
	sb.WriteString("# TYPE httpdrill_host_memory_used_percent gauge\n")
	fmt.Fprintf(sb, "httpdrill_host_memory_used_percent %.4f %d\n", stats.memUsedPct, timestamp)

	sb.WriteString("# HELP httpdrill_host_load_average Host load average, by window\n")
	sb.WriteString("# TYPE httpdrill_host_load_average gauge\n")
	fmt.Fprintf(sb, "httpdrill_host_load_average{window=\"1m\"} %.4f %d\n", stats.loadAvg1, timestamp)
	fmt.Fprintf(sb, "httpdrill_host_load_average{window=\"5m\"} %.4f %d\n", stats.loadAvg5, timestamp)
	fmt.Fprintf(sb, "httpdrill_host_load_average{window=\"15m\"} %.4f %d\n", stats.loadAvg15, timestamp)
}
