package treatment

import "errors"

var (
	ErrPackageNotFound = errors.New("package not found")
)
