package registry

import "errors"

var errEmptyToolName = errors.New("registry: tool descriptor has empty name")
