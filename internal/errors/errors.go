package errors

import (
	"errors"
)

// Operation boundary error kinds. None of these are fatal to the process;
// the update loop reports them and keeps going.
var (
	ErrAlreadyRunning = errors.New("broadcast already running")
	ErrNotRunning     = errors.New("no broadcast running")
	ErrWrongJob       = errors.New("wrong broadcast job")
	ErrNoPrivileges   = errors.New("no privileges")
)
