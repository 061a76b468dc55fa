package automaton

// SyncState is the dense engine's host/device freshness state. The
// host-visible snapshot of grid state is not kept automatically current:
// every Step marks it DirtyOnDevice, and only an explicit sync marks it Clean
// again. Syncing on every step would defeat the parallel engine's purpose, so
// the two-state protocol is load-bearing, not an implementation detail.
type SyncState uint8

const (
	// SyncClean means the host snapshot matches the latest device generation.
	SyncClean SyncState = iota
	// SyncDirtyOnDevice means the device holds a newer generation than the
	// host snapshot.
	SyncDirtyOnDevice
)

// String returns the state's display name.
func (s SyncState) String() string {
	switch s {
	case SyncClean:
		return "Clean"
	case SyncDirtyOnDevice:
		return "DirtyOnDevice"
	default:
		return "Unknown"
	}
}

// syncBridge is the explicit two-state machine tracking host snapshot
// freshness. Not internally locked: the owning engine's mutex guards it.
type syncBridge struct {
	state SyncState
}

// markDeviceWrite records that the device produced state the host has not
// seen. Transition taken by Step.
func (b *syncBridge) markDeviceWrite() {
	b.state = SyncDirtyOnDevice
}

// markSynced records that host and device state match again. Transition taken
// by SyncFromDevice, SyncToDevice, and any operation that rewrites both sides.
func (b *syncBridge) markSynced() {
	b.state = SyncClean
}

func (b *syncBridge) clean() bool {
	return b.state == SyncClean
}
