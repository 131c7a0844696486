package versions

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// MinConnectVersion is the oldest Kafka Connect release whose restart endpoint
// accepts includeTasks and onlyFailed
const MinConnectVersion = "3.0.0"

// CheckConnectVersion returns an error when the worker reports a version older than
// MinConnectVersion. Build suffixes such as "-ccs" are ignored.
func CheckConnectVersion(reported string) error {
	v, err := semver.NewVersion(reported)
	if err != nil {
		return fmt.Errorf("unrecognised kafka connect version %q: %w", reported, err)
	}
	core, _ := v.SetPrerelease("")
	if core.LessThan(semver.MustParse(MinConnectVersion)) {
		return fmt.Errorf("kafka connect %s is older than the supported minimum %s", reported, MinConnectVersion)
	}
	return nil
}
