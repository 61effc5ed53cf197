// Package role models the shared execution identity consumed by every
// compute unit. Components attach named permission policies to the role
// during composition; the role is frozen before function builds consume it.
package role

import (
	"errors"
	"fmt"
	"sync"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrFrozen is returned when attaching to a role that has already been
	// consumed by a function build.
	ErrFrozen = errors.New("role is frozen and no longer accepts attachments")

	// ErrEmptyPolicyName is returned for attachments without a name.
	ErrEmptyPolicyName = errors.New("policy attachment name must not be empty")
)

// =============================================================================
// Role
// =============================================================================

// Attachment is a named permission policy attached to a Role.
type Attachment struct {
	Name   string
	Policy string
}

// Role is the shared execution identity. Multiple components attach
// policies to it before it is frozen and handed to function builds;
// attachment is idempotent per name and safe for concurrent use.
type Role struct {
	name string

	mu          sync.Mutex
	frozen      bool
	order       []string
	attachments map[string]string
}

// New creates a role with the given name.
func New(name string) *Role {
	return &Role{
		name:        name,
		attachments: make(map[string]string),
	}
}

// Name returns the role name.
func (r *Role) Name() string {
	return r.name
}

// Attach adds a named policy to the role. Attaching the same name twice
// keeps the first policy document and does not duplicate the attachment.
// Attach fails once the role has been frozen.
func (r *Role) Attach(name, policy string) error {
	if name == "" {
		return ErrEmptyPolicyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: %q", ErrFrozen, name)
	}
	if _, exists := r.attachments[name]; exists {
		return nil
	}
	r.attachments[name] = policy
	r.order = append(r.order, name)
	return nil
}

// Freeze marks the role as consumed. Further Attach calls fail.
// Freeze is idempotent.
func (r *Role) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Attachments returns the attached policies in attachment order.
func (r *Role) Attachments() []Attachment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Attachment, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Attachment{Name: name, Policy: r.attachments[name]})
	}
	return out
}
