package l1frames

import (
	"fmt"
	"sort"
	"time"
)

// ChannelData is everything a Dataset knows about one channel.
type ChannelData struct {
	Frame           *Frame
	Bottom          BottomLine // optional, aligned to Frame pings
	Absorption      *float64   // dB/m
	TransducerDepth *float64   // m
}

// NavigationTrack is a platform time series on its own timeline.
type NavigationTrack struct {
	Times  []time.Time
	Fields map[NavField][]float64
}

// Dataset is an in-memory Source holding several channels and one shared
// navigation track.
type Dataset struct {
	Channels map[string]*ChannelData
	Track    *NavigationTrack
}

var _ Source = (*Dataset)(nil)

// NewDataset returns an empty Dataset.
func NewDataset() *Dataset {
	return &Dataset{Channels: make(map[string]*ChannelData)}
}

// AddChannel registers ch under its frame's channel name.
func (d *Dataset) AddChannel(ch *ChannelData) error {
	if ch == nil || ch.Frame == nil {
		return fmt.Errorf("add channel: nil frame")
	}
	if err := ch.Frame.Validate(); err != nil {
		return fmt.Errorf("add channel %q: %w", ch.Frame.Channel, err)
	}
	if ch.Bottom != nil {
		if _, pings := ch.Frame.Dims(); len(ch.Bottom) != pings {
			return fmt.Errorf("add channel %q: %w: %d bottom values for %d pings",
				ch.Frame.Channel, ErrShapeMismatch, len(ch.Bottom), pings)
		}
	}
	if d.Channels == nil {
		d.Channels = make(map[string]*ChannelData)
	}
	d.Channels[ch.Frame.Channel] = ch
	return nil
}

// ChannelNames returns the channel names in sorted order.
func (d *Dataset) ChannelNames() []string {
	names := make([]string, 0, len(d.Channels))
	for n := range d.Channels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Frame implements FrameSource.
func (d *Dataset) Frame(channel string) (*Frame, error) {
	ch, ok := d.Channels[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return ch.Frame, nil
}

// Bottom implements BottomSource. The stored line is already aligned to the
// channel's pings, so pingTimes only guards against a different timeline.
// An empty pingTimes means the frame carries no timeline and is not checked.
func (d *Dataset) Bottom(channel string, pingTimes []time.Time) (BottomLine, bool, error) {
	ch, ok := d.Channels[channel]
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	if ch.Bottom == nil {
		return nil, false, nil
	}
	if len(pingTimes) != 0 && len(ch.Bottom) != len(pingTimes) {
		return nil, false, fmt.Errorf("%w: %d bottom values for %d pings", ErrShapeMismatch, len(ch.Bottom), len(pingTimes))
	}
	return ch.Bottom, true, nil
}

// Navigation implements NavigationSource.
func (d *Dataset) Navigation(field NavField, pingTimes []time.Time, tolerance time.Duration) ([]float64, bool) {
	if d.Track == nil {
		return nil, false
	}
	vals, ok := d.Track.Fields[field]
	if !ok {
		return nil, false
	}
	return AlignNearest(d.Track.Times, vals, pingTimes, tolerance), true
}

// Absorption implements MetadataSource.
func (d *Dataset) Absorption(channel string) float64 {
	if ch, ok := d.Channels[channel]; ok && ch.Absorption != nil {
		return *ch.Absorption
	}
	return 0
}

// TransducerDepth implements MetadataSource.
func (d *Dataset) TransducerDepth(channel string) float64 {
	if ch, ok := d.Channels[channel]; ok && ch.TransducerDepth != nil {
		return *ch.TransducerDepth
	}
	return 0
}
