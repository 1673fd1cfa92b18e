// Package dataset reads echosounder datasets stored as JSON, optionally
// gzip-compressed, into an l1frames.Dataset.
//
// Matrices are written ping-major (one array of samples per ping) and are
// transposed on load to the [sample, ping] layout the detector uses. JSON
// null, "NaN", "Inf" and "-Inf" decode to the matching float values.
package dataset

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/banshee-data/echo.report/internal/echo/l1frames"
	"gonum.org/v1/gonum/mat"
)

// File is the on-disk layout.
type File struct {
	Channels   []Channel   `json:"channels"`
	Navigation *Navigation `json:"navigation,omitempty"`
}

// Channel is one channel's matrices and metadata.
type Channel struct {
	Name            string      `json:"name"`
	PingTimes       []time.Time `json:"ping_times,omitempty"`
	Signal          [][]Number  `json:"signal"`
	Depth           [][]Number  `json:"depth"`
	Along           [][]Number  `json:"along,omitempty"`
	Athwart         [][]Number  `json:"athwart,omitempty"`
	Bottom          []Number    `json:"bottom,omitempty"`
	Absorption      *float64    `json:"absorption,omitempty"`
	TransducerDepth *float64    `json:"transducer_depth,omitempty"`
}

// Navigation is the platform track on its own timeline. Field names are
// l1frames.NavField values.
type Navigation struct {
	Times  []time.Time         `json:"times"`
	Fields map[string][]Number `json:"fields"`
}

// Number is a float64 that also accepts null and the strings "NaN", "Inf"
// and "-Inf".
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null", `"NaN"`:
		*n = Number(math.NaN())
		return nil
	case `"Inf"`, `"+Inf"`:
		*n = Number(math.Inf(1))
		return nil
	case `"-Inf"`:
		*n = Number(math.Inf(-1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = Number(f)
	return nil
}

// MarshalJSON implements json.Marshaler, writing non-finite values as strings.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte("null"), nil
	case math.IsInf(f, 1):
		return []byte(`"Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

var gzipMagic = []byte{0x1f, 0x8b}

// Load reads the dataset at path. Gzip input is detected from its magic
// bytes, so the extension does not matter.
func Load(path string) (*l1frames.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	ds, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Decode reads a JSON or gzip-compressed JSON dataset from r.
func Decode(r io.Reader) (*l1frames.Dataset, error) {
	br := bufio.NewReader(r)
	if head, _ := br.Peek(2); bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	} else {
		r = br
	}

	var file File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return file.Dataset()
}

// Dataset converts the file layout into an in-memory l1frames.Dataset.
func (f *File) Dataset() (*l1frames.Dataset, error) {
	if len(f.Channels) == 0 {
		return nil, fmt.Errorf("dataset has no channels")
	}
	ds := l1frames.NewDataset()
	for i := range f.Channels {
		c := &f.Channels[i]
		if c.Name == "" {
			return nil, fmt.Errorf("channel %d has no name", i)
		}
		if _, dup := ds.Channels[c.Name]; dup {
			return nil, fmt.Errorf("duplicate channel %q", c.Name)
		}
		cd, err := c.channelData()
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", c.Name, err)
		}
		if err := ds.AddChannel(cd); err != nil {
			return nil, err
		}
	}
	if f.Navigation != nil {
		track, err := f.Navigation.track()
		if err != nil {
			return nil, fmt.Errorf("navigation: %w", err)
		}
		ds.Track = track
	}
	return ds, nil
}

func (c *Channel) channelData() (*l1frames.ChannelData, error) {
	signal, err := toDense("signal", c.Signal)
	if err != nil {
		return nil, err
	}
	depth, err := toDense("depth", c.Depth)
	if err != nil {
		return nil, err
	}
	along, err := toDense("along", c.Along)
	if err != nil {
		return nil, err
	}
	athwart, err := toDense("athwart", c.Athwart)
	if err != nil {
		return nil, err
	}
	frame := &l1frames.Frame{
		Channel:   c.Name,
		Signal:    signal,
		Depth:     depth,
		Along:     along,
		Athwart:   athwart,
		PingTimes: c.PingTimes,
	}
	var bottom l1frames.BottomLine
	if c.Bottom != nil {
		bottom = make(l1frames.BottomLine, len(c.Bottom))
		for j, v := range c.Bottom {
			bottom[j] = float64(v)
		}
	}
	return &l1frames.ChannelData{
		Frame:           frame,
		Bottom:          bottom,
		Absorption:      c.Absorption,
		TransducerDepth: c.TransducerDepth,
	}, nil
}

// toDense transposes ping-major rows into a [sample, ping] matrix. An absent
// matrix yields nil.
func toDense(name string, pings [][]Number) (*mat.Dense, error) {
	if len(pings) == 0 {
		return nil, nil
	}
	samples := len(pings[0])
	if samples == 0 {
		return nil, fmt.Errorf("%s: ping 0 has no samples", name)
	}
	m := mat.NewDense(samples, len(pings), nil)
	for j, col := range pings {
		if len(col) != samples {
			return nil, fmt.Errorf("%s: %w: ping %d has %d samples, want %d",
				name, l1frames.ErrShapeMismatch, j, len(col), samples)
		}
		for i, v := range col {
			m.Set(i, j, float64(v))
		}
	}
	return m, nil
}

func (n *Navigation) track() (*l1frames.NavigationTrack, error) {
	for i := 1; i < len(n.Times); i++ {
		if n.Times[i].Before(n.Times[i-1]) {
			return nil, fmt.Errorf("times not sorted at index %d", i)
		}
	}
	known := make(map[l1frames.NavField]bool, len(l1frames.NavFields))
	for _, f := range l1frames.NavFields {
		known[f] = true
	}
	track := &l1frames.NavigationTrack{
		Times:  n.Times,
		Fields: make(map[l1frames.NavField][]float64, len(n.Fields)),
	}
	for name, vals := range n.Fields {
		field := l1frames.NavField(name)
		if !known[field] {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if len(vals) != len(n.Times) {
			return nil, fmt.Errorf("%w: field %q has %d values for %d times",
				l1frames.ErrShapeMismatch, name, len(vals), len(n.Times))
		}
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		track.Fields[field] = out
	}
	return track, nil
}

// FromDataset builds the file layout for ds. It is the inverse of
// File.Dataset and is used to write synthetic datasets.
func FromDataset(ds *l1frames.Dataset) *File {
	f := &File{}
	for _, name := range ds.ChannelNames() {
		cd := ds.Channels[name]
		c := Channel{
			Name:            name,
			PingTimes:       cd.Frame.PingTimes,
			Signal:          fromDense(cd.Frame.Signal),
			Depth:           fromDense(cd.Frame.Depth),
			Along:           fromDense(cd.Frame.Along),
			Athwart:         fromDense(cd.Frame.Athwart),
			Absorption:      cd.Absorption,
			TransducerDepth: cd.TransducerDepth,
		}
		if cd.Bottom != nil {
			c.Bottom = make([]Number, len(cd.Bottom))
			for j, v := range cd.Bottom {
				c.Bottom[j] = Number(v)
			}
		}
		f.Channels = append(f.Channels, c)
	}
	if ds.Track != nil {
		nav := &Navigation{Times: ds.Track.Times, Fields: make(map[string][]Number)}
		for field, vals := range ds.Track.Fields {
			out := make([]Number, len(vals))
			for i, v := range vals {
				out[i] = Number(v)
			}
			nav.Fields[string(field)] = out
		}
		f.Navigation = nav
	}
	return f
}

func fromDense(m *mat.Dense) [][]Number {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	out := make([][]Number, c)
	for j := range out {
		out[j] = make([]Number, r)
		for i := range out[j] {
			out[j][i] = Number(m.At(i, j))
		}
	}
	return out
}

// Encode writes f as JSON to w, gzip-compressed when compress is set.
func (f *File) Encode(w io.Writer, compress bool) error {
	if compress {
		gz := gzip.NewWriter(w)
		if err := json.NewEncoder(gz).Encode(f); err != nil {
			gz.Close()
			return fmt.Errorf("encode dataset: %w", err)
		}
		return gz.Close()
	}
	if err := json.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}
