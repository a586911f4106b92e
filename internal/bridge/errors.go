package bridge

import (
	"errors"
	"fmt"
)

// ErrProtocol marks malformed argument text: missing array brackets, type
// mismatches, unknown fields, numeric overflow. Always surfaced to the
// front-end as a failure envelope, never fatal to the process.
var ErrProtocol = errors.New("protocol error")

// ErrUnbound is returned when no function is registered under the invoked
// name.
var ErrUnbound = errors.New("unbound function")

func protocolErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
