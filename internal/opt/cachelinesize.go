package opt

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize_ is used in structure padding to prevent false sharing.
// It's automatically calculated using the `golang.org/x/sys` package.
const CacheLineSize_ = unsafe.Sizeof(cpu.CacheLinePad{})

// padBytes_ is the padding that completes one cache line after a machine word.
const padBytes_ = (CacheLineSize_ - 8%CacheLineSize_) % CacheLineSize_
