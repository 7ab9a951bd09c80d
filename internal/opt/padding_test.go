package opt

import (
	"testing"
	"unsafe"
)

func TestPadCompletesCacheLine(t *testing.T) {
	size := unsafe.Sizeof(Pad_{})
	if !Padded_ {
		if size != 0 {
			t.Fatalf("Pad_ size = %d, want 0 when padding is off", size)
		}
		return
	}
	if (size+8)%CacheLineSize_ != 0 {
		t.Fatalf("Pad_ size = %d does not complete a %d byte line", size, CacheLineSize_)
	}
}

func TestCacheLineSizePowerOfTwo(t *testing.T) {
	if CacheLineSize_ == 0 || CacheLineSize_&(CacheLineSize_-1) != 0 {
		t.Fatalf("CacheLineSize_ = %d, want a power of two", CacheLineSize_)
	}
}
