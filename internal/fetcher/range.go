package fetcher

import "fmt"

// Window is one inclusive block range queried as a unit.
type Window struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into consecutive windows of size chunkSize.
// The last window may be shorter. An inverted range yields no windows.
func SplitRange(from, to, chunkSize uint64) ([]Window, error) {
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}
	if to < from {
		return nil, nil
	}

	windows := make([]Window, 0, (to-from)/chunkSize+1)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= chunkSize {
			end = to
		} else {
			end = start + chunkSize - 1
		}
		windows = append(windows, Window{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return windows, nil
}
