package l1frames

import "time"

// FrameSource returns the aligned signal/depth (and optional angle) matrices
// for a channel.
type FrameSource interface {
	Frame(channel string) (*Frame, error)
}

// BottomSource returns the bottom line for a channel aligned to pingTimes.
// ok is false when the source has no bottom for the channel.
type BottomSource interface {
	Bottom(channel string, pingTimes []time.Time) (line BottomLine, ok bool, err error)
}

// NavigationSource returns one navigation field resampled onto pingTimes by
// nearest timestamp within tolerance. Unresolved pings are NaN. ok is false
// when the source does not carry the field at all.
type NavigationSource interface {
	Navigation(field NavField, pingTimes []time.Time, tolerance time.Duration) (values []float64, ok bool)
}

// MetadataSource returns per-channel scalars. Absent values read as zero.
type MetadataSource interface {
	Absorption(channel string) float64
	TransducerDepth(channel string) float64
}

// Source bundles every collaborator the detector consumes.
type Source interface {
	FrameSource
	BottomSource
	NavigationSource
	MetadataSource
}
