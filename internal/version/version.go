package version

import (
	"runtime"
	"time"
)

// Build metadata, overridden at release time via -ldflags; the defaults make
// dev builds identifiable in /api/healthz.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = time.Now().Format(time.RFC3339)
	GoVersion = runtime.Version()
)
