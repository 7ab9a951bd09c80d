//go:build !(amd64 || 386 || arm || mips || mipsle || wasm) && !qsync_disable_padding && !qsync_enable_padding

package opt

// Pad_ follows a hot machine word (the synchronizer state) so that the queue
// pointers after it live on another cache line.
// Padding is automatically enabled for architectures that are NOT:
// - amd64 (x86_64): Hardware optimizations often make padding less critical
// - 32-bit architectures (386, arm, mips, mipsle, wasm): Smaller cache lines/memory constraints
//
// Enabled for: arm64, s390x, ppc64, ppc64le, riscv64, loong64, mips64, mips64le, etc.
type Pad_ struct {
	_ [padBytes_]byte
}

const Padded_ = true
