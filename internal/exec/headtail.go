package exec

import "fmt"

// DefaultShellOutputBytes and MaxShellOutputBytes bound the shell tool's
// head+tail truncation window (distinct from the 1 MiB hard safety cap
// enforced by LimitOutput/AggregateOutput upstream of this).
const (
	DefaultShellOutputBytes = 4 * 1024
	MaxShellOutputBytes     = 64 * 1024
)

// HeadTail truncates output longer than 2*window bytes, keeping the first and
// last window bytes and inserting a marker line noting how many bytes were
// dropped in between. If output already fits, it is returned unchanged.
func HeadTail(output []byte, window int) []byte {
	if window <= 0 {
		window = DefaultShellOutputBytes
	}
	if len(output) <= 2*window {
		return output
	}
	head := output[:window]
	tail := output[len(output)-window:]
	omitted := len(output) - 2*window
	marker := []byte(fmt.Sprintf("\n... [%d bytes omitted] ...\n", omitted))
	out := make([]byte, 0, len(head)+len(marker)+len(tail))
	out = append(out, head...)
	out = append(out, marker...)
	out = append(out, tail...)
	return out
}
