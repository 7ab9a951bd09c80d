//go:build (amd64 || 386 || arm || mips || mipsle || wasm) && !qsync_disable_padding && !qsync_enable_padding

package opt

// Pad_ is empty by default for:
// - amd64
// - 32-bit architectures (386, arm, mips, mipsle, wasm)
type Pad_ struct{}

const Padded_ = false
