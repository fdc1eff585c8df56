package config

// Default values. The emitter logs only warnings so a healthy run prints
// nothing but its diagnostic line; the launcher reports membership at info.
const (
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "auto"
	DefaultLaunchProcs    = 1
	DefaultLaunchBind     = "127.0.0.1:0"
	DefaultLaunchTimeout  = "0"
	DefaultLaunchLogLevel = "info"
)

// DefaultConfigYAML documents every key with its default value.
const DefaultConfigYAML = `# time-offset configuration
# Environment variables override this file: TIMEOFFSET_LOG_LEVEL,
# TIMEOFFSET_LAUNCH_PROCS, ...

log:
  level: warn     # debug, info, warn, error
  format: auto    # auto, text, json (logs go to stderr)

launch:
  procs: 1
  bind: 127.0.0.1:0   # rendezvous listen address
  timeout: "0"        # e.g. 30s; "0" waits forever
  audit: ""           # write a JSON membership audit to this path
  log_level: info
`
