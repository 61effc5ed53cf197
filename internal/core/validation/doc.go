// Package validation provides pure validation functions for composition
// inputs. All functions are free of I/O and side effects; callers at the
// boundary (API handlers, CLI) translate failures into their own error
// surfaces.
package validation
