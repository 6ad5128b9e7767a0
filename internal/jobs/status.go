package jobs

// ValidTransition enforces the forward-only status machine. Terminal statuses
// only move again through an explicit re-run, which restarts the sequence at
// queued (full pipeline), converting (retrigger without content) or analyzing
// (retrigger with content).
func ValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusQueued:
		return to == StatusConverting || to == StatusTranslating || to == StatusFailed
	case StatusConverting:
		return to == StatusExtractingAssets || to == StatusFailed
	case StatusExtractingAssets:
		return to == StatusCompleted || to == StatusFailed
	case StatusAnalyzing:
		return to == StatusCompleted
	case StatusTranslating:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted:
		return to == StatusQueued || to == StatusConverting || to == StatusAnalyzing || to == StatusTranslating
	case StatusFailed:
		return to == StatusQueued || to == StatusConverting || to == StatusAnalyzing || to == StatusTranslating
	default:
		return false
	}
}

// ProgressFor maps a document status onto the coarse progress scale. Chunked
// translation jobs compute progress from their chunk counters instead.
func ProgressFor(s Status) int {
	switch s {
	case StatusQueued:
		return 0
	case StatusConverting:
		return 25
	case StatusExtractingAssets:
		return 70
	case StatusAnalyzing:
		return 90
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}
