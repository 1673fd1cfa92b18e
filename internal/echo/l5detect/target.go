package l5detect

import "time"

// Target is one accepted single-target echo. Fields a strategy does not
// measure hold NaN.
type Target struct {
	TSComp   float64 `json:"ts_comp"`   // dB, beam compensated
	TSUncomp float64 `json:"ts_uncomp"` // dB

	Range        float64 `json:"range"`         // m, at the peak
	RangeDisplay float64 `json:"range_display"` // m, peak + c*T/4
	RangeMin     float64 `json:"range_min"`     // m, over the envelope
	RangeMax     float64 `json:"range_max"`     // m, over the envelope

	Sample      int       `json:"sample"`       // global range sample index
	Ping        int       `json:"ping"`         // global ping index
	LinearIndex int       `json:"linear_index"` // ping*samples_per_ping + sample
	Time        time.Time `json:"time"`

	EnvBefore       int     `json:"env_before"` // samples before the peak
	EnvAfter        int     `json:"env_after"`  // samples after the peak
	PulseLengthNorm float64 `json:"pulse_length_norm"`
	PulseLength     int     `json:"pulse_length"` // samples

	AngleStdMinor float64 `json:"angle_std_minor"`
	AngleStdMajor float64 `json:"angle_std_major"`
	AngleMinor    float64 `json:"angle_minor"`
	AngleMajor    float64 `json:"angle_major"`

	Heave    float64 `json:"heave"`
	Roll     float64 `json:"roll"`
	Pitch    float64 `json:"pitch"`
	Heading  float64 `json:"heading"`
	Distance float64 `json:"distance"`
}
