package client

import "errors"

// ErrNotConnected is returned by invokes attempted without a live connection.
var ErrNotConnected = errors.New("client not connected")
