package fslm

// Basic types shared across the package.

import (
	"flag"
	"math"
	"strconv"
)

// TermId is a small integer identifying a term (word). Ids below
// FirstUnreserved are reserved (see reserved.go).
type TermId int32

// InvalidTermId is never a valid term-id. Lookups in this package
// report a miss with UNK rather than with this value.
const InvalidTermId TermId = -1

// NodeId identifies a node in a LOUDS trie, in BFS (level) order. The
// root is node 0.
type NodeId int64

// InvalidNodeId is a sentinel distinct from every valid NodeId.
const InvalidNodeId NodeId = -1

// TerminalId identifies a value-bearing node in a LOUDS trie,
// numbered independently from NodeId in the same level order.
type TerminalId int64

// InvalidTerminalId is a sentinel distinct from every valid
// TerminalId.
const InvalidTerminalId TerminalId = -1

// Weight is the floating point type used for log-probabilities
// throughout the package.
type Weight float32

// WeightSize is the bit size of Weight, used when parsing/formatting.
const WeightSize = 32

// Log0 represents an effectively impossible event (-infinity).
var Log0 = Weight(math.Inf(-1))

func (w *Weight) String() string {
	return strconv.FormatFloat(float64(*w), 'g', -1, 32)
}

func (w *Weight) Set(s string) error {
	f, err := strconv.ParseFloat(s, 32)
	if err == nil {
		*w = Weight(f)
	}
	return err
}

var _ flag.Value = (*Weight)(nil)

// StupidBackoffLn is ln(0.4), the per-dropped-history-token penalty
// applied when no stored backoff weight is available.
const StupidBackoffLn = Weight(-0.9162907318741551)
