//go:build qsync_disable_padding

package opt

// Pad_ is empty.
// Padding is force-disabled via the qsync_disable_padding build tag.
// Use: go build -tags=qsync_disable_padding
type Pad_ struct{}

const Padded_ = false
