package config

// Default configuration constants for session management and telemetry
const (
	DefaultEventBufferSize   = 10000
	DefaultChannelBufferSize = 10000
	DefaultSessionTTLMs      = 900000 // 15 minutes
	DefaultSessionIdleMs     = 60000  // 1 minute
	MinSessionTimeoutMs      = 1000
)

// Knob keys read by the engine/run manager at run start (§6). None of them,
// statsInterval included, is re-read mid-run: a change takes effect on the
// next run only.
const (
	KeyWorkers                = "workers"
	KeyMaxConnections          = "maxConnections"
	KeyDefaultTimeout          = "defaultTimeout"
	KeyEventLoopMaxConcurrent  = "eventLoopMaxConcurrent"
	KeyEventLoopMaxPerHost     = "eventLoopMaxPerHost"
	KeyDNSCacheTimeout         = "dnsCacheTimeout"
	KeyTCPKeepAliveIdle        = "tcpKeepAliveIdle"
	KeyTCPKeepAliveInterval    = "tcpKeepAliveInterval"
	KeyStatsInterval           = "statsInterval"
	KeySSEConnectTimeout       = "sseConnectTimeout"
	KeySSEMaxRetry             = "sseMaxRetry"
	KeySSESendLastEventID      = "sseSendLastEventId"
	KeyScriptTimeout           = "scriptTimeout"
	KeyScriptMemoryLimit       = "scriptMemoryLimit"
	KeyScriptStackSize         = "scriptStackSize"
	KeyScriptEnableConsole     = "scriptEnableConsole"
	KeyMaxJSONFieldSize        = "maxJsonFieldSize"
)

// DefaultEntries returns the knob table (§6) with its shipped defaults. A
// ConfigStore may override any of these at load time via Reload.
func DefaultEntries() []Entry {
	return []Entry{
		{Key: KeyWorkers, Type: TypeInteger, Value: int64(0), Default: int64(0), Min: floatPtr(0), Max: floatPtr(1024),
			Label: "Workers", Description: "Total worker count (event-loop shards); 0 resolves to min(NumCPU, 16)", Category: "engine"},
		{Key: KeyMaxConnections, Type: TypeInteger, Value: int64(100), Default: int64(100), Min: floatPtr(1), Max: floatPtr(1_000_000),
			Label: "Max connections", Description: "Total concurrent transfer cap across all workers", Category: "engine"},
		{Key: KeyDefaultTimeout, Type: TypeInteger, Value: int64(30000), Default: int64(30000), Min: floatPtr(1), Max: floatPtr(600_000),
			Label: "Default timeout", Description: "Per-request timeout fallback, milliseconds", Category: "engine"},
		{Key: KeyEventLoopMaxConcurrent, Type: TypeInteger, Value: int64(0), Default: int64(0), Min: floatPtr(0), Max: floatPtr(1_000_000),
			Label: "Per-worker concurrency cap", Description: "0 derives from maxConnections/workers", Category: "engine"},
		{Key: KeyEventLoopMaxPerHost, Type: TypeInteger, Value: int64(0), Default: int64(0), Min: floatPtr(0), Max: floatPtr(1_000_000),
			Label: "Per-worker per-host cap", Description: "0 means unbounded", Category: "engine"},
		{Key: KeyDNSCacheTimeout, Type: TypeInteger, Value: int64(60), Default: int64(60), Min: floatPtr(0), Max: floatPtr(86400),
			Label: "DNS cache TTL", Description: "Any positive value enables the per-run DNS cache, whose entries are kept for the whole run; 0 disables the cache", Category: "network"},
		{Key: KeyTCPKeepAliveIdle, Type: TypeInteger, Value: int64(0), Default: int64(0), Min: floatPtr(0), Max: floatPtr(3600),
			Label: "TCP keep-alive idle", Description: "Seconds before the first keep-alive probe; 0 disables", Category: "network"},
		{Key: KeyTCPKeepAliveInterval, Type: TypeInteger, Value: int64(0), Default: int64(0), Min: floatPtr(0), Max: floatPtr(3600),
			Label: "TCP keep-alive interval", Description: "Seconds between keep-alive probes", Category: "network"},
		{Key: KeyStatsInterval, Type: TypeInteger, Value: int64(250), Default: int64(250), Min: floatPtr(10), Max: floatPtr(60_000),
			Label: "Stats interval", Description: "Snapshot cadence, milliseconds; read at run start", Category: "telemetry"},
		{Key: KeySSEConnectTimeout, Type: TypeInteger, Value: int64(5000), Default: int64(5000), Min: floatPtr(1), Max: floatPtr(120_000),
			Label: "SSE connect timeout", Description: "Milliseconds", Category: "streaming"},
		{Key: KeySSEMaxRetry, Type: TypeInteger, Value: int64(3), Default: int64(3), Min: floatPtr(0), Max: floatPtr(100),
			Label: "SSE max retry", Description: "Reconnect attempts before giving up", Category: "streaming"},
		{Key: KeySSESendLastEventID, Type: TypeBoolean, Value: true, Default: true,
			Label: "SSE send Last-Event-ID", Description: "Resume from the last seen event on reconnect", Category: "streaming"},
		{Key: KeyScriptTimeout, Type: TypeInteger, Value: int64(5000), Default: int64(5000), Min: floatPtr(1), Max: floatPtr(60_000),
			Label: "Script timeout", Description: "Milliseconds allotted to a ScriptRunner call", Category: "scripting"},
		{Key: KeyScriptMemoryLimit, Type: TypeInteger, Value: int64(64), Default: int64(64), Min: floatPtr(1), Max: floatPtr(4096),
			Label: "Script memory limit", Description: "Megabytes", Category: "scripting"},
		{Key: KeyScriptStackSize, Type: TypeInteger, Value: int64(1), Default: int64(1), Min: floatPtr(1), Max: floatPtr(64),
			Label: "Script stack size", Description: "Megabytes", Category: "scripting"},
		{Key: KeyScriptEnableConsole, Type: TypeBoolean, Value: false, Default: false,
			Label: "Script console", Description: "Allow console output from ScriptRunner scripts", Category: "scripting"},
		{Key: KeyMaxJSONFieldSize, Type: TypeInteger, Value: int64(1 << 20), Default: int64(1 << 20), Min: floatPtr(1024), Max: floatPtr(1 << 28),
			Label: "Max JSON field size", Description: "Bytes; caps a single field when loading persisted requests", Category: "io"},
	}
}

func floatPtr(f float64) *float64 { return &f }
