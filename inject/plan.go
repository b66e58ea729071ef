package inject

import (
	"math"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/wasm"
)

const segmentAlign = 16

// layout places the script in memory.
type layout struct {
	offset   uint64
	length   uint64
	oldPages uint64
	newPages uint64
}

// planLayout puts the script at the first 16-byte boundary at or above the
// current end of memory and computes the initial page count that covers it.
func planLayout(mem wasm.Limits, scriptLen int) (layout, error) {
	length := uint64(scriptLen)
	if length > math.MaxInt32 {
		return layout{}, errors.Overflow(errors.PhaseInject, "length", length, "i32")
	}

	base := mem.Min * wasm.PageSize
	aligned := (base + segmentAlign - 1) &^ (segmentAlign - 1)
	end := aligned + length
	required := (end + wasm.PageSize - 1) / wasm.PageSize
	pages := max(required, mem.Min)

	limit := uint64(wasm.MaxPages32)
	if mem.Max != nil {
		limit = *mem.Max
	}
	if pages > limit {
		return layout{}, errors.New(errors.PhaseInject, errors.KindCapacity).
			Path("memory").Value(pages).
			Detail("script needs %d pages, maximum is %d", pages, limit).Build()
	}
	if aligned > math.MaxInt32 {
		return layout{}, errors.Overflow(errors.PhaseInject, "offset", aligned, "i32")
	}

	return layout{
		offset:   aligned,
		length:   length,
		oldPages: mem.Min,
		newPages: pages,
	}, nil
}
