package feeds

import (
	"fmt"
	"time"
)

type statusError int

func errStatusf(status int) error { return statusError(status) }

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", int(e))
}

type staleError time.Duration

func errStalef(age time.Duration) error { return staleError(age) }

func (e staleError) Error() string {
	return fmt.Sprintf("sample is %s old, exceeds fetch deadline", time.Duration(e))
}
