package scanner

// InvocationMode selects which default entry-count safety cap applies.
type InvocationMode int

const (
	ModeDirect     InvocationMode = iota // regular CLI/library invocation
	ModeToolServer                       // invoked via the JSON-RPC tool server
	ModeHomeDir                          // scanning under the user's home directory
)

const (
	capDirect     = 1_000_000
	capToolServer = 100_000
	capHomeDir    = 500_000
)

// CapFor returns the default entry-count safety cap for mode, or override if
// it is non-zero (a ScanRequest.MaxEntries value takes precedence over the
// mode default).
func CapFor(mode InvocationMode, override int) int {
	if override > 0 {
		return override
	}
	switch mode {
	case ModeToolServer:
		return capToolServer
	case ModeHomeDir:
		return capHomeDir
	default:
		return capDirect
	}
}
