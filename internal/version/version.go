package version

// Version is the current sanistation version
const Version = "0.3.0"

// GitCommit is set at build time via ldflags
var GitCommit = "unknown"
