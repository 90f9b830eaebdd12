package teal

import "errors"

// ErrDepthExceeded is returned by every conversion path when a document
// nests deeper than MaxNestingDepth.
var ErrDepthExceeded = errors.New("maximum nesting depth exceeded")
