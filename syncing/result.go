package syncing

// Result reports how a refresh cycle ended. A cycle that reaches the
// registry and persists metadata is Synced; a cycle whose adapter call
// failed still stamps LastSyncedAt and reports SyncedWithAdapterFailure;
// a package found gone upstream short-circuits to Removed.
type Result int

const (
	Synced Result = iota
	SyncedWithAdapterFailure
	Removed
)

func (r Result) String() string {
	switch r {
	case Synced:
		return "synced"
	case SyncedWithAdapterFailure:
		return "synced_with_adapter_failure"
	case Removed:
		return "removed"
	}
	return "unknown"
}
