package memory

import (
	"encoding/binary"
	"math"
)

// Resolve follows a pointer path. Starting at base, each hop reads a pointer
// at the current address and adds the hop's offset to it. Pointers are
// 4 bytes wide when the address they are read from fits in 32 bits and
// 8 bytes otherwise. Address arithmetic wraps.
func Resolve(r Reader, base uint64, hops []int64) (uint64, error) {
	addr := base
	var buf [8]byte
	for _, off := range hops {
		var ptr uint64
		if addr <= math.MaxUint32 {
			if err := r.Read(addr, buf[:4]); err != nil {
				return 0, err
			}
			ptr = uint64(binary.LittleEndian.Uint32(buf[:4]))
		} else {
			if err := r.Read(addr, buf[:8]); err != nil {
				return 0, err
			}
			ptr = binary.LittleEndian.Uint64(buf[:8])
		}
		addr = ptr + uint64(off)
	}
	return addr, nil
}
