// Package layers resolves short runtime-extension names to concrete Lambda
// layer identifiers. The registry is a fixed, process-wide table; an
// unknown name or version is a configuration error, never a warning.
package layers

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnknownLayer is returned when a requested layer name is not in
	// the registry.
	ErrUnknownLayer = errors.New("unknown layer name")

	// ErrUnknownVersion is returned when the runtime version has no
	// published layers.
	ErrUnknownVersion = errors.New("unsupported runtime version")
)

// =============================================================================
// Layer Names
// =============================================================================

// Name identifies a runtime-extension layer. The set of names is closed;
// Resolve matches on it exhaustively instead of probing a runtime-built
// key set.
type Name string

const (
	// Runtime is the long-running PHP runtime layer (CLI loop, Octane).
	Runtime Name = "runtime"

	// CLI is the console layer used by the command-runner function.
	CLI Name = "cli"

	// FPMRuntime is the PHP-FPM runtime layer for classic HTTP handling.
	FPMRuntime Name = "fpm-runtime"
)

// Parse validates a layer name string against the closed name set.
func Parse(s string) (Name, error) {
	switch Name(s) {
	case Runtime, CLI, FPMRuntime:
		return Name(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLayer, s)
	}
}

// =============================================================================
// Registry
// =============================================================================

// publisherAccount is the account that publishes the runtime layers.
const publisherAccount = "534081306603"

// layerRevisions pins the published revision of each layer per runtime
// version. Adding a runtime version means extending these three tables
// together.
var (
	runtimeRevisions = map[string]int{"8.2": 74, "8.3": 52, "8.4": 31}
	cliRevisions     = map[string]int{"8.2": 71, "8.3": 50, "8.4": 29}
	fpmRevisions     = map[string]int{"8.2": 76, "8.3": 55, "8.4": 33}
)

// Resolve maps a layer name and runtime version to the concrete layer ARN
// for the given region. Unknown names and versions are configuration
// errors that must abort composition.
func Resolve(name Name, version, region string) (string, error) {
	var (
		short     string
		revisions map[string]int
	)

	switch name {
	case Runtime:
		short, revisions = "php-"+versionDigits(version), runtimeRevisions
	case CLI:
		short, revisions = "console", cliRevisions
	case FPMRuntime:
		short, revisions = "php-"+versionDigits(version)+"-fpm", fpmRevisions
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLayer, string(name))
	}

	revision, ok := revisions[version]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}

	return fmt.Sprintf("arn:aws:lambda:%s:%s:layer:%s:%d", region, publisherAccount, short, revision), nil
}

// versionDigits turns "8.4" into "84" for use in layer short names.
func versionDigits(version string) string {
	out := make([]byte, 0, len(version))
	for i := 0; i < len(version); i++ {
		if version[i] != '.' {
			out = append(out, version[i])
		}
	}
	return string(out)
}
