package runner

import "errors"

// ErrEngineDefect marks a failure of the runner's own control logic, such as
// a descriptor without an executable. It terminates the owning suite only.
var ErrEngineDefect = errors.New("engine defect")
