//go:build qsync_enable_padding

package opt

// Pad_ completes the cache line of the synchronizer state.
// Padding is force-enabled via the qsync_enable_padding build tag.
// Use: go build -tags=qsync_enable_padding
type Pad_ struct {
	_ [padBytes_]byte
}

const Padded_ = true
