package async

import "errors"

// ErrUnresolvable is returned when awaiting a zero Value that has no
// backing state and therefore can never resolve.
var ErrUnresolvable = errors.New("value has no backing state and will never resolve")
