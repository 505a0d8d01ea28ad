package credentials

import "go.uber.org/zap"

// logger is the package-wide fallback used by anything that does not embed
// an OAuth2Fetcher (which carries its own named child logger). Matches the
// teacher's zap.L()-as-global convention.
var logger = zap.L().Named("credentials")
