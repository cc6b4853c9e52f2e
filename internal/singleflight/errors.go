package singleflight

import "errors"

// ErrPanicked is what every caller of a call receives when it panicked.
var ErrPanicked = errors.New("singleflight: shared call panicked")
