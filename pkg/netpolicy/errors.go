package netpolicy

import "errors"

var ErrUnsupportedFamily = errors.New("unsupported address family")
