package monitor

import "errors"

var (
    ErrNotStarted     = errors.New("monitor: not started")
    ErrAlreadyStarted = errors.New("monitor: already started")
    ErrClosed         = errors.New("monitor: closed")
)
