package model

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockRef points at either the latest block or an explicit block number.
type BlockRef struct {
	Number uint64
	Latest bool
}

// LatestBlock refers to the chain head at resolution time.
func LatestBlock() BlockRef {
	return BlockRef{Latest: true}
}

// AtBlock refers to an explicit block number.
func AtBlock(number uint64) BlockRef {
	return BlockRef{Number: number}
}

// ParseBlockRef accepts "latest" (or an empty string) and decimal block numbers.
func ParseBlockRef(input string) (BlockRef, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "latest") {
		return LatestBlock(), nil
	}
	n, err := strconv.ParseUint(input, 10, 64)
	if err != nil {
		return BlockRef{}, fmt.Errorf("invalid block %q: must be a number or latest", input)
	}
	return AtBlock(n), nil
}

func (b BlockRef) String() string {
	if b.Latest {
		return "latest"
	}
	return strconv.FormatUint(b.Number, 10)
}
