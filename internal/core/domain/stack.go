// Package domain defines the persistent entities of the platform.
// This is part of the Functional Core - entities carry no I/O.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/skiffhq/skiff/internal/core/flags"
)

// =============================================================================
// Stack Errors
// =============================================================================

var (
	// ErrEmptyStackName is returned when creating a stack without a name.
	ErrEmptyStackName = errors.New("stack name must not be empty")

	// ErrInvalidTransition is returned for an invalid status transition.
	ErrInvalidTransition = errors.New("invalid stack status transition")
)

// =============================================================================
// Stack Status
// =============================================================================

// StackStatus is the lifecycle state of a composed stack.
type StackStatus string

const (
	StackPlanned   StackStatus = "planned"
	StackDeploying StackStatus = "deploying"
	StackDeployed  StackStatus = "deployed"
	StackFailed    StackStatus = "failed"
)

// validTransitions encodes the stack lifecycle state machine.
var validTransitions = map[StackStatus][]StackStatus{
	StackPlanned:   {StackDeploying},
	StackDeploying: {StackDeployed, StackFailed},
	StackDeployed:  {StackDeploying},
	StackFailed:    {StackDeploying},
}

// =============================================================================
// Stack
// =============================================================================

// Stack is one composed deployment: the flags it was composed from, the
// resolved exports, and the encrypted database credentials when the
// topology includes a database.
type Stack struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Flags  flags.FeatureFlags `json:"flags"`
	Status StackStatus        `json:"status"`

	// Exports is the flat resolved export mapping. Empty until the stack
	// has been deployed (or planned offline).
	Exports map[string]string `json:"exports,omitempty"`

	// EncryptedCredentials holds the base64 AES-GCM ciphertext of the
	// resolved database credentials. Empty when the stack has no database.
	EncryptedCredentials string `json:"-"`

	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewStack creates a stack in the planned state.
func NewStack(name string, f flags.FeatureFlags) (*Stack, error) {
	if name == "" {
		return nil, ErrEmptyStackName
	}
	now := time.Now().UTC()
	return &Stack{
		ID:        uuid.New().String(),
		Name:      name,
		Flags:     f.Normalized(),
		Status:    StackPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition moves the stack to a new status, validating the transition
// against the lifecycle state machine.
func (s *Stack) Transition(to StackStatus) error {
	for _, allowed := range validTransitions[s.Status] {
		if allowed == to {
			s.Status = to
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrInvalidTransition
}
