package media

import "fmt"

// Kind is the closed set of media types the bot mirrors.
type Kind int

const (
	KindPhoto Kind = iota
	KindVideo
	KindCircularVideo // Telegram video notes
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindCircularVideo:
		return "circular_video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Google Photos upload limits.
const (
	DefaultPhotoMaxBytes = 200 * 1024 * 1024       // 200 MB
	DefaultVideoMaxBytes = 10 * 1024 * 1024 * 1024 // 10 GB
)

// Limits holds the per-kind size ceilings checked before download.
type Limits struct {
	PhotoMaxBytes int64
	VideoMaxBytes int64
}

func DefaultLimits() Limits {
	return Limits{
		PhotoMaxBytes: DefaultPhotoMaxBytes,
		VideoMaxBytes: DefaultVideoMaxBytes,
	}
}

// Max returns the ceiling for the given kind. Circular videos share
// the video limit.
func (l Limits) Max(kind Kind) int64 {
	if kind == KindPhoto {
		return l.PhotoMaxBytes
	}
	return l.VideoMaxBytes
}

// Content is downloaded media ready for upload.
type Content struct {
	Data     []byte
	Filename string
	MimeType string
}
