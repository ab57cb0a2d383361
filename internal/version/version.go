/*
Package version provides version information for kimo.

Values are set via ldflags during build:

	-X github.com/khanglvm/kimo/internal/version.Version=v0.3.0
	-X github.com/khanglvm/kimo/internal/version.Commit=abc1234
	-X github.com/khanglvm/kimo/internal/version.Date=2026-10-01

Unset values report a "dev" build.
*/
package version

var (
	// Version is the release tag (e.g., v0.3.0)
	Version = "dev"
	// Commit is the short git commit hash
	Commit = "none"
	// Date is the build date in UTC (YYYY-MM-DD)
	Date = "unknown"
)

// GetVersion returns version information as a formatted string
func GetVersion() string {
	return FormatVersion(Version, Commit, Date)
}

// FormatVersion formats version components into a display string
func FormatVersion(version, commit, date string) string {
	if version == "dev" {
		return version + " (development build)"
	}
	return version + " (commit: " + commit + ", built: " + date + ")"
}
