package version

// unset is the value of Version in builds that don't stamp it with
// `-ldflags "-X github.com/sidkik/bak/pkg/version.Version=..."`.
const unset = "set-by-make"

// Version is the git tag the binary was built from.
var Version = unset

// Get returns Version, or "dev" for unstamped builds such as `go install`
// and unit tests.
func Get() string {
	if Version == unset {
		return "dev"
	}
	return Version
}
