package sandbox

import "errors"

// ErrNoTrackedListener is returned when a hook that requires a tracked
// listener (listening_socket having already fired) runs before one
// exists.
var ErrNoTrackedListener = errors.New("sandbox: no tracked listener")

// ErrUnsupportedFamily is returned when a connect/bind address cannot be
// classified as AF_INET, AF_INET6, or AF_UNIX.
var ErrUnsupportedFamily = errors.New("sandbox: unsupported address family")
