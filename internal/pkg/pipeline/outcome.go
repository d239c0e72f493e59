package pipeline

// Outcome is the observable result of one pipeline run. Every intake
// event produces exactly one; nothing is dropped silently.
type Outcome int

const (
	Synced Outcome = iota
	SkippedDuplicate
	SkippedOversize
	SkippedUnauthorizedGroup
	SkippedNoMedia
	FailedPermanently
)

func (o Outcome) String() string {
	switch o {
	case Synced:
		return "synced"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case SkippedOversize:
		return "skipped_oversize"
	case SkippedUnauthorizedGroup:
		return "skipped_unauthorized_group"
	case SkippedNoMedia:
		return "skipped_no_media"
	case FailedPermanently:
		return "failed_permanently"
	default:
		return "unknown"
	}
}
