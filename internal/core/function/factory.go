package function

import (
	"errors"
	"fmt"

	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/layers"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptyName is returned for builds without a function name.
	ErrEmptyName = errors.New("function name must not be empty")

	// ErrEmptyHandler is returned for builds without a handler.
	ErrEmptyHandler = errors.New("function handler must not be empty")

	// ErrTimeoutOutOfRange is returned when the timeout exceeds the
	// platform ceiling or is not positive.
	ErrTimeoutOutOfRange = errors.New("function timeout out of range")

	// ErrMemoryOutOfRange is returned when the memory size is outside the
	// platform's allowed range.
	ErrMemoryOutOfRange = errors.New("function memory size out of range")
)

// =============================================================================
// Factory
// =============================================================================

// Inputs are the caller-supplied parameters for one function build.
type Inputs struct {
	Name           string
	CodeRef        string
	RoleName       string
	Handler        string
	Environment    Env
	LayerNames     []string
	TimeoutSeconds int
	MemoryMB       int
	Arch           Architecture

	SubnetIDs       async.Value[[]string]
	SecurityGroupID async.Value[string]
}

// Factory validates build inputs and resolves layer names against the
// fixed registry for one runtime version and region.
type Factory struct {
	phpVersion string
	region     string
}

// NewFactory creates a factory bound to a runtime version and region.
func NewFactory(phpVersion, region string) *Factory {
	return &Factory{phpVersion: phpVersion, region: region}
}

// Build validates the inputs and produces an immutable Spec.
//
// Every requested layer name is resolved against the registry in caller
// order; an unknown name is a configuration error that aborts the build
// immediately, leaving no partial Spec. Numeric bounds are validated
// against the platform limits.
func (f *Factory) Build(in Inputs) (*Spec, error) {
	if in.Name == "" {
		return nil, ErrEmptyName
	}
	if in.Handler == "" {
		return nil, ErrEmptyHandler
	}
	if in.TimeoutSeconds <= 0 || in.TimeoutSeconds > MaxTimeoutSeconds {
		return nil, fmt.Errorf("%w: %d seconds (allowed 1-%d)", ErrTimeoutOutOfRange, in.TimeoutSeconds, MaxTimeoutSeconds)
	}
	if in.MemoryMB < MinMemoryMB || in.MemoryMB > MaxMemoryMB {
		return nil, fmt.Errorf("%w: %d MB (allowed %d-%d)", ErrMemoryOutOfRange, in.MemoryMB, MinMemoryMB, MaxMemoryMB)
	}

	resolved := make([]string, 0, len(in.LayerNames))
	for _, raw := range in.LayerNames {
		name, err := layers.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", in.Name, err)
		}
		arn, err := layers.Resolve(name, f.phpVersion, f.region)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", in.Name, err)
		}
		resolved = append(resolved, arn)
	}

	arch := in.Arch
	if arch == "" {
		arch = ArchX86
	}

	env := in.Environment
	if env == nil {
		env = Env{}
	}

	return &Spec{
		Name:            in.Name,
		CodeRef:         in.CodeRef,
		RoleName:        in.RoleName,
		Handler:         in.Handler,
		Environment:     env,
		Layers:          resolved,
		TimeoutSeconds:  in.TimeoutSeconds,
		MemoryMB:        in.MemoryMB,
		Arch:            arch,
		SubnetIDs:       in.SubnetIDs,
		SecurityGroupID: in.SecurityGroupID,
	}, nil
}
