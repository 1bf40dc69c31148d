package utils

// -----------------------------------------------------------------------------

// Pipeline defaults applied when the config leaves a value unset.
const (
	DefaultWindowSize          = 20
	DefaultAnnualizationFactor = 252.0
	DefaultRiskFreeRate        = 0.02
	DefaultSource              = "file_import"
	DefaultLookbackDays        = 365
	DefaultStoreTimeoutSeconds = 30
	DefaultRetryBaseMillis     = 500
	DefaultLockTTLSeconds      = 300
	DefaultRecentRuns          = 200
)

// DateLayout is the query/CLI date format.
const DateLayout = "2006-01-02"
