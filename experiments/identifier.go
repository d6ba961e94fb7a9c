package experiments

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Template is the naming scheme for record identifiers. The placeholder %T
// expands to the run timestamp and %N to the experiment name.
type Template string

// DefaultTemplate names records "<timestamp>-<name>".
const DefaultTemplate Template = "%T-%N"

const (
	// timestampLayout renders with microsecond precision so identifiers are
	// unique per run and sort lexicographically in chronological order.
	timestampLayout = "2006.01.02-15.04.05.000000"

	// timestampPattern matches exactly the strings timestampLayout produces.
	timestampPattern = `\d\d\d\d\.\d\d\.\d\d-\d\d\.\d\d\.\d\d\.\d\d\d\d\d\d`
)

// Validate checks that the template carries both placeholders.
func (t Template) Validate() error {
	if !strings.Contains(string(t), "%T") || !strings.Contains(string(t), "%N") {
		return fmt.Errorf("invalid identifier template %q: must contain %%T and %%N", t)
	}

	return nil
}

// Identifier builds the record identifier for name at ts.
func (t Template) Identifier(name string, ts time.Time) string {
	return strings.NewReplacer(
		"%T", ts.Format(timestampLayout),
		"%N", name,
	).Replace(string(t))
}

// Matcher returns an anchored regular expression matching exactly the
// identifiers generated for name. A non-nil version is appended to the name
// with a "-" separator first, so versioned runs partition the identifier
// space without colliding with similarly prefixed names.
func (t Template) Matcher(name string, version *semver.Version) (*regexp.Regexp, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	expr := strings.NewReplacer(
		"%T", timestampPattern,
		"%N", regexp.QuoteMeta(recordName(name, version)),
	).Replace(regexp.QuoteMeta(string(t)))

	re, err := regexp.Compile("^" + expr + "$")
	if err != nil {
		return nil, fmt.Errorf("failed to build identifier matcher for %q: %w", name, err)
	}

	return re, nil
}

// recordName joins a name with its optional version, the form under which
// runs are recorded and looked up.
func recordName(name string, version *semver.Version) string {
	if version == nil {
		return name
	}

	return name + "-" + version.String()
}
