// Package memory resolves pointer paths, decodes typed values and scans for
// byte signatures in another process's memory.
//
// Everything here works against the small Reader and RegionReader
// interfaces, which process.Process satisfies.
package memory

import "github.com/wippyai/lasr/process"

// Reader reads raw bytes from an address space.
type Reader interface {
	Read(addr uint64, buf []byte) error
}

// RegionReader is a Reader that can list its mappings.
type RegionReader interface {
	Reader
	Regions() ([]process.Region, error)
}
