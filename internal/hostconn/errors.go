package hostconn

import "fmt"

// HostUnavailableError reports that the channel to the tool host could not
// be established or dropped mid-call. Fatal to the current query.
type HostUnavailableError struct {
	Op  string // "launch", "connect", "tools/list", "tools/call"
	Err error
}

func (e *HostUnavailableError) Error() string {
	return fmt.Sprintf("tool host unavailable: %s: %v", e.Op, e.Err)
}

func (e *HostUnavailableError) Unwrap() error { return e.Err }

// ToolExecutionError reports that the host ran a tool and the tool failed.
// Recoverable: the orchestration loop turns it into a diagnostic result and
// keeps going.
type ToolExecutionError struct {
	Name    string
	Message string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %s", e.Name, e.Message)
}
