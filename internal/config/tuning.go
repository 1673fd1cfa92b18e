package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical detection defaults file.
const DefaultConfigPath = "config/detection.defaults.json"

// TuningConfig is the raw, partially specified detection configuration.
// Keys follow the established single-target detection parameter names so
// that the same JSON can come from a file, a raw map, or an API request.
// Nil fields fall back to defaults through the Get* accessors.
type TuningConfig struct {
	// Shared
	DataType      *string  `json:"DataType,omitempty"`
	Variant       *string  `json:"Variant,omitempty"`
	SoundSpeed    *float64 `json:"SoundSpeed,omitempty"`
	TSThreshold   *float64 `json:"TS_threshold,omitempty"`
	BlockLen      *float64 `json:"block_len,omitempty"`
	PulseDuration *float64 `json:"pulse_length,omitempty"` // seconds
	Np            *int     `json:"Np,omitempty"`           // samples; derived when <= 2

	// Threshold-shape detector
	PLDL      *float64 `json:"PLDL,omitempty"`
	MinNormPL *float64 `json:"MinNormPL,omitempty"`
	MaxNormPL *float64 `json:"MaxNormPL,omitempty"`

	// Energy-surrogate detector
	MaxAngleOneWayCompression *float64 `json:"MaxAngleOneWayCompression,omitempty"`
	MinEchoLength             *float64 `json:"MinEchoLength,omitempty"`
	MaxEchoLength             *float64 `json:"MaxEchoLength,omitempty"`
	MinEchoSpace              *float64 `json:"MinEchoSpace,omitempty"`
	MinEchoDepthM             *float64 `json:"MinEchoDepthM,omitempty"`
	MaxEchoDepthM             *float64 `json:"MaxEchoDepthM,omitempty"`
	TVGStartSample            *int     `json:"tvg_start_sample,omitempty"`
	GuardSamples              *int     `json:"guard_samples,omitempty"`

	// Beam pattern, used when no transducer metadata is available
	BeamwidthAlongRad   *float64 `json:"beamwidth_along_3dB_rad,omitempty"`
	BeamwidthAthwartRad *float64 `json:"beamwidth_athwart_3dB_rad,omitempty"`
	SteerAlongRad       *float64 `json:"steer_along_rad,omitempty"`
	SteerAthwartRad     *float64 `json:"steer_athwart_rad,omitempty"`

	// Sv -> TS calibration constants
	PsiTwoWay     *float64 `json:"psi_two_way,omitempty"`
	SaCorrection  *float64 `json:"Sa_correction,omitempty"`
	SaEK80Nominal *float64 `json:"Sa_EK80_nominal,omitempty"`

	// Navigation alignment
	NavTolerance *string `json:"nav_tolerance,omitempty"` // duration string like "500ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		DataType:                  ptrString(e.GetDataType()),
		Variant:                   ptrString(string(e.GetVariant())),
		SoundSpeed:                ptrFloat64(e.GetSoundSpeed()),
		TSThreshold:               ptrFloat64(e.GetTSThreshold()),
		BlockLen:                  ptrFloat64(e.GetBlockLen()),
		PulseDuration:             ptrFloat64(e.GetPulseDuration()),
		PLDL:                      ptrFloat64(e.GetPLDL()),
		MinNormPL:                 ptrFloat64(e.GetMinNormPL()),
		MaxNormPL:                 ptrFloat64(e.GetMaxNormPL()),
		MaxAngleOneWayCompression: ptrFloat64(e.GetMaxAngleOneWayCompression()),
		MinEchoLength:             ptrFloat64(e.GetMinEchoLength()),
		MaxEchoLength:             ptrFloat64(e.GetMaxEchoLength()),
		MinEchoSpace:              ptrFloat64(e.GetMinEchoSpace()),
		MinEchoDepthM:             ptrFloat64(e.GetMinEchoDepthM()),
		MaxEchoDepthM:             ptrFloat64(e.GetMaxEchoDepthM()),
		TVGStartSample:            ptrInt(e.GetTVGStartSample()),
		GuardSamples:              ptrInt(e.GetGuardSamples()),
		BeamwidthAlongRad:         ptrFloat64(e.GetBeamwidthAlongRad()),
		BeamwidthAthwartRad:       ptrFloat64(e.GetBeamwidthAthwartRad()),
		SteerAlongRad:             ptrFloat64(e.GetSteerAlongRad()),
		SteerAthwartRad:           ptrFloat64(e.GetSteerAthwartRad()),
		PsiTwoWay:                 ptrFloat64(e.GetPsiTwoWay()),
		SaCorrection:              ptrFloat64(e.GetSaCorrection()),
		SaEK80Nominal:             ptrFloat64(e.GetSaEK80Nominal()),
		NavTolerance:              ptrString(e.GetNavTolerance().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under 1MB.
// Fields omitted from the file keep their defaults, so partial configs are
// safe. YAML keys are the same as the JSON keys.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if ext != ".json" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}

	cfg, err := decodeTuning(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// yamlToJSON re-encodes a YAML mapping as JSON so that both formats go
// through the same strict decoder.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if raw == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unencodable YAML value: %v", err)}
	}
	return out, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// decodeTuning parses JSON strictly: unknown keys and mistyped values are
// configuration errors rather than silently ignored.
func decodeTuning(data []byte) (*TuningConfig, error) {
	return decodeTuningOnto(EmptyTuningConfig(), data)
}

// decodeTuningOnto applies the keys present in data on top of cfg.
func decodeTuningOnto(cfg *TuningConfig, data []byte) (*TuningConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, invalid(typeErr.Field, "has wrong type %s", typeErr.Value)
		}
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	return cfg, nil
}

// clone returns a deep copy of c.
func (c *TuningConfig) clone() *TuningConfig {
	data, _ := json.Marshal(c)
	out := EmptyTuningConfig()
	_ = json.Unmarshal(data, out)
	return out
}

// Validate checks the ranges the detectors rely on. Only fields that are set
// are checked; defaults are always valid.
func (c *TuningConfig) Validate() error {
	if c.DataType != nil && *c.DataType != PulseTypeCW {
		return invalid("DataType", "must be %q (FM pulses are not supported), got %q", PulseTypeCW, *c.DataType)
	}
	if c.Variant != nil {
		if _, err := ParseVariant(*c.Variant); err != nil {
			return err
		}
	}
	if c.TSThreshold != nil && !inRange(*c.TSThreshold, -120, -20) {
		return invalid("TS_threshold", "must be in [-120, -20] dB, got %g", *c.TSThreshold)
	}
	if c.PLDL != nil && !inRange(*c.PLDL, 1, 30) {
		return invalid("PLDL", "must be in [1, 30] dB, got %g", *c.PLDL)
	}
	if c.MinNormPL != nil && !inRange(*c.MinNormPL, 0, 10) {
		return invalid("MinNormPL", "must be in [0, 10], got %g", *c.MinNormPL)
	}
	if c.MaxNormPL != nil && !inRange(*c.MaxNormPL, 0, 10) {
		return invalid("MaxNormPL", "must be in [0, 10], got %g", *c.MaxNormPL)
	}
	if c.BlockLen != nil && !(*c.BlockLen > 0) {
		return invalid("block_len", "must be > 0, got %g", *c.BlockLen)
	}
	if c.SoundSpeed != nil && !(*c.SoundSpeed > 0) {
		return invalid("SoundSpeed", "must be > 0, got %g", *c.SoundSpeed)
	}
	if c.PulseDuration != nil && !(*c.PulseDuration > 0) {
		return invalid("pulse_length", "must be > 0 s, got %g", *c.PulseDuration)
	}
	if c.GetMinEchoLength() > c.GetMaxEchoLength() {
		return invalid("MinEchoLength", "must not exceed MaxEchoLength (%g > %g)", c.GetMinEchoLength(), c.GetMaxEchoLength())
	}
	if c.GetMinEchoLength() < 0 {
		return invalid("MinEchoLength", "must be non-negative, got %g", c.GetMinEchoLength())
	}
	if c.GetMinEchoDepthM() > c.GetMaxEchoDepthM() {
		return invalid("MinEchoDepthM", "must not exceed MaxEchoDepthM (%g > %g)", c.GetMinEchoDepthM(), c.GetMaxEchoDepthM())
	}
	if c.MinEchoSpace != nil && *c.MinEchoSpace < 0 {
		return invalid("MinEchoSpace", "must be non-negative, got %g", *c.MinEchoSpace)
	}
	if c.BeamwidthAlongRad != nil && !(*c.BeamwidthAlongRad > 0) {
		return invalid("beamwidth_along_3dB_rad", "must be > 0, got %g", *c.BeamwidthAlongRad)
	}
	if c.BeamwidthAthwartRad != nil && !(*c.BeamwidthAthwartRad > 0) {
		return invalid("beamwidth_athwart_3dB_rad", "must be > 0, got %g", *c.BeamwidthAthwartRad)
	}
	if c.GuardSamples != nil && *c.GuardSamples < 0 {
		return invalid("guard_samples", "must be non-negative, got %d", *c.GuardSamples)
	}
	if c.TVGStartSample != nil && *c.TVGStartSample < 0 {
		return invalid("tvg_start_sample", "must be non-negative, got %d", *c.TVGStartSample)
	}
	if c.NavTolerance != nil && *c.NavTolerance != "" {
		d, err := time.ParseDuration(*c.NavTolerance)
		if err != nil {
			return invalid("nav_tolerance", "is not a duration: %v", err)
		}
		if d < 0 {
			return invalid("nav_tolerance", "must be non-negative, got %v", d)
		}
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// GetDataType returns the pulse type or the default (CW).
func (c *TuningConfig) GetDataType() string {
	if c.DataType == nil {
		return PulseTypeCW
	}
	return *c.DataType
}

// GetVariant returns the detector variant or the default (threshold).
func (c *TuningConfig) GetVariant() Variant {
	if c.Variant == nil {
		return VariantThreshold
	}
	v, err := ParseVariant(*c.Variant)
	if err != nil {
		return VariantThreshold
	}
	return v
}

// GetSoundSpeed returns the sound speed in m/s or the default.
func (c *TuningConfig) GetSoundSpeed() float64 {
	if c.SoundSpeed == nil {
		return 1500.0
	}
	return *c.SoundSpeed
}

// GetTSThreshold returns the TS_threshold value in dB or the default.
func (c *TuningConfig) GetTSThreshold() float64 {
	if c.TSThreshold == nil {
		return -50.0
	}
	return *c.TSThreshold
}

// GetBlockLen returns the per-block cell budget or the default (~3.33M cells).
func (c *TuningConfig) GetBlockLen() float64 {
	if c.BlockLen == nil {
		return 1e7 / 3
	}
	return *c.BlockLen
}

// GetPulseDuration returns the transmit pulse duration in seconds or the default.
func (c *TuningConfig) GetPulseDuration() float64 {
	if c.PulseDuration == nil {
		return 1e-3
	}
	return *c.PulseDuration
}

// GetNp returns the explicit pulse length in samples, or 0 when it must be
// derived from the depth grid.
func (c *TuningConfig) GetNp() int {
	if c.Np == nil || *c.Np <= 2 {
		return 0
	}
	return *c.Np
}

// GetPLDL returns the pulse-length detection level in dB or the default.
func (c *TuningConfig) GetPLDL() float64 {
	if c.PLDL == nil {
		return 6.0
	}
	return *c.PLDL
}

// GetMinNormPL returns the minimum normalised pulse length or the default.
func (c *TuningConfig) GetMinNormPL() float64 {
	if c.MinNormPL == nil {
		return 0.7
	}
	return *c.MinNormPL
}

// GetMaxNormPL returns the maximum normalised pulse length or the default.
func (c *TuningConfig) GetMaxNormPL() float64 {
	if c.MaxNormPL == nil {
		return 1.5
	}
	return *c.MaxNormPL
}

// GetMaxAngleOneWayCompression returns the one-way beam compensation limit in dB.
func (c *TuningConfig) GetMaxAngleOneWayCompression() float64 {
	if c.MaxAngleOneWayCompression == nil {
		return 6.0
	}
	return *c.MaxAngleOneWayCompression
}

// GetMinEchoLength returns the minimum echo length in pulse lengths.
func (c *TuningConfig) GetMinEchoLength() float64 {
	if c.MinEchoLength == nil {
		return 0.8
	}
	return *c.MinEchoLength
}

// GetMaxEchoLength returns the maximum echo length in pulse lengths.
func (c *TuningConfig) GetMaxEchoLength() float64 {
	if c.MaxEchoLength == nil {
		return 1.8
	}
	return *c.MaxEchoLength
}

// GetMinEchoSpace returns the minimum spacing between echoes in pulse lengths.
func (c *TuningConfig) GetMinEchoSpace() float64 {
	if c.MinEchoSpace == nil {
		return 1.0
	}
	return *c.MinEchoSpace
}

// GetMinEchoDepthM returns the shallow edge of the accepted depth band.
func (c *TuningConfig) GetMinEchoDepthM() float64 {
	if c.MinEchoDepthM == nil {
		return 3.0
	}
	return *c.MinEchoDepthM
}

// GetMaxEchoDepthM returns the deep edge of the accepted depth band.
func (c *TuningConfig) GetMaxEchoDepthM() float64 {
	if c.MaxEchoDepthM == nil {
		return 38.0
	}
	return *c.MaxEchoDepthM
}

// GetTVGStartSample returns the first sample of the TVG range ramp (EK60=3, EK80=1).
func (c *TuningConfig) GetTVGStartSample() int {
	if c.TVGStartSample == nil {
		return 3
	}
	return *c.TVGStartSample
}

// GetGuardSamples returns how many samples nearest the transducer are
// excluded from the energy-surrogate peak search.
func (c *TuningConfig) GetGuardSamples() int {
	if c.GuardSamples == nil {
		return 8
	}
	return *c.GuardSamples
}

// GetBeamwidthAlongRad returns the alongship 3 dB beamwidth (default 7°).
func (c *TuningConfig) GetBeamwidthAlongRad() float64 {
	if c.BeamwidthAlongRad == nil {
		return 7.0 * math.Pi / 180
	}
	return *c.BeamwidthAlongRad
}

// GetBeamwidthAthwartRad returns the athwartship 3 dB beamwidth (default 7°).
func (c *TuningConfig) GetBeamwidthAthwartRad() float64 {
	if c.BeamwidthAthwartRad == nil {
		return 7.0 * math.Pi / 180
	}
	return *c.BeamwidthAthwartRad
}

// GetSteerAlongRad returns the alongship steering offset.
func (c *TuningConfig) GetSteerAlongRad() float64 {
	if c.SteerAlongRad == nil {
		return 0
	}
	return *c.SteerAlongRad
}

// GetSteerAthwartRad returns the athwartship steering offset.
func (c *TuningConfig) GetSteerAthwartRad() float64 {
	if c.SteerAthwartRad == nil {
		return 0
	}
	return *c.SteerAthwartRad
}

// GetPsiTwoWay returns the equivalent two-way beam angle in dB.
func (c *TuningConfig) GetPsiTwoWay() float64 {
	if c.PsiTwoWay == nil {
		return 0
	}
	return *c.PsiTwoWay
}

// GetSaCorrection returns the Sa correction in dB.
func (c *TuningConfig) GetSaCorrection() float64 {
	if c.SaCorrection == nil {
		return 0
	}
	return *c.SaCorrection
}

// GetSaEK80Nominal returns the EK80 nominal Sa term in dB.
func (c *TuningConfig) GetSaEK80Nominal() float64 {
	if c.SaEK80Nominal == nil {
		return 0
	}
	return *c.SaEK80Nominal
}

// GetNavTolerance parses and returns the navigation alignment tolerance.
func (c *TuningConfig) GetNavTolerance() time.Duration {
	if c.NavTolerance == nil || *c.NavTolerance == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.NavTolerance)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}
