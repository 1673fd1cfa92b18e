package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// PulseTypeCW is the only transmit pulse type the detectors support.
const PulseTypeCW = "CW"

// Variant selects the single-target detection algorithm.
type Variant string

const (
	// VariantThreshold is the threshold + pulse-length-detection-level detector.
	VariantThreshold Variant = "threshold"
	// VariantEnergy is the energy-surrogate detector with beam compensation.
	VariantEnergy Variant = "energy"
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantThreshold, VariantEnergy:
		return Variant(s), nil
	}
	return "", invalid("Variant", "must be %q or %q, got %q", VariantThreshold, VariantEnergy, s)
}

// Routing keys carried in the raw parameter map alongside tuning values.
const (
	KeyChannel = "channel"
)

// DetectionParams is the validated, immutable configuration handed to the
// detection pipeline. It is a plain value: copies are independent.
type DetectionParams struct {
	Channel string
	Variant Variant

	SoundSpeed    float64 // m/s
	TSThreshold   float64 // dB
	BlockLen      float64 // cells per block
	PulseDuration float64 // s
	Np            int     // samples; 0 means derive from the depth grid

	PLDL      float64
	MinNormPL float64
	MaxNormPL float64

	MaxAngleOneWayCompression float64
	MinEchoLength             float64
	MaxEchoLength             float64
	MinEchoSpace              float64
	MinEchoDepthM             float64
	MaxEchoDepthM             float64
	TVGStartSample            int
	GuardSamples              int

	BeamwidthAlongRad   float64
	BeamwidthAthwartRad float64
	SteerAlongRad       float64
	SteerAthwartRad     float64

	PsiTwoWay     float64
	SaCorrection  float64
	SaEK80Nominal float64

	NavTolerance time.Duration
}

// Params validates c and resolves it, together with the channel selector,
// into DetectionParams.
func (c *TuningConfig) Params(channel string) (DetectionParams, error) {
	if channel == "" {
		return DetectionParams{}, &MissingParameterError{Name: KeyChannel}
	}
	if err := c.Validate(); err != nil {
		return DetectionParams{}, err
	}
	return DetectionParams{
		Channel:                   channel,
		Variant:                   c.GetVariant(),
		SoundSpeed:                c.GetSoundSpeed(),
		TSThreshold:               c.GetTSThreshold(),
		BlockLen:                  c.GetBlockLen(),
		PulseDuration:             c.GetPulseDuration(),
		Np:                        c.GetNp(),
		PLDL:                      c.GetPLDL(),
		MinNormPL:                 c.GetMinNormPL(),
		MaxNormPL:                 c.GetMaxNormPL(),
		MaxAngleOneWayCompression: c.GetMaxAngleOneWayCompression(),
		MinEchoLength:             c.GetMinEchoLength(),
		MaxEchoLength:             c.GetMaxEchoLength(),
		MinEchoSpace:              c.GetMinEchoSpace(),
		MinEchoDepthM:             c.GetMinEchoDepthM(),
		MaxEchoDepthM:             c.GetMaxEchoDepthM(),
		TVGStartSample:            c.GetTVGStartSample(),
		GuardSamples:              c.GetGuardSamples(),
		BeamwidthAlongRad:         c.GetBeamwidthAlongRad(),
		BeamwidthAthwartRad:       c.GetBeamwidthAthwartRad(),
		SteerAlongRad:             c.GetSteerAlongRad(),
		SteerAthwartRad:           c.GetSteerAthwartRad(),
		PsiTwoWay:                 c.GetPsiTwoWay(),
		SaCorrection:              c.GetSaCorrection(),
		SaEK80Nominal:             c.GetSaEK80Nominal(),
		NavTolerance:              c.GetNavTolerance(),
	}, nil
}

// ParseParams merges a raw parameter map over base (nil means built-in
// defaults), validates the result and returns DetectionParams. The map must
// carry the "channel" selector; every other key must be a known tuning key.
// ParseParams has no side effects and never mutates base or raw.
func ParseParams(base *TuningConfig, raw map[string]interface{}) (DetectionParams, error) {
	if base == nil {
		base = EmptyTuningConfig()
	}

	channel, err := channelFrom(raw)
	if err != nil {
		return DetectionParams{}, err
	}

	tuning := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == KeyChannel {
			continue
		}
		tuning[k] = v
	}

	cfg := base.clone()
	if len(tuning) > 0 {
		data, err := json.Marshal(tuning)
		if err != nil {
			return DetectionParams{}, &ConfigurationError{Reason: fmt.Sprintf("unencodable parameter map: %v", err)}
		}
		if cfg, err = decodeTuningOnto(cfg, data); err != nil {
			return DetectionParams{}, err
		}
	}
	return cfg.Params(channel)
}

func channelFrom(raw map[string]interface{}) (string, error) {
	v, ok := raw[KeyChannel]
	if !ok || v == nil {
		return "", &MissingParameterError{Name: KeyChannel}
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(KeyChannel, "must be a string, got %T", v)
	}
	if s == "" {
		return "", &MissingParameterError{Name: KeyChannel}
	}
	return s, nil
}
