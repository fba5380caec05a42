// SPDX-License-Identifier: MIT
// Package nn - weight stream readers.
//
// Two encodings describe the same Spec:
//
//	Text (line oriented, '#' starts a comment):
//
//	  planes 4 6 3
//	  input_min  v1 .. vN
//	  input_max  v1 .. vN
//	  output_min v1 .. vK
//	  output_max v1 .. vK
//	  bias 0     b1 .. b(Planes[1])
//	  weights 0
//	  w11 .. w1N          (Planes[1] rows of Planes[0] values)
//	  ...
//	  bias 1 ...
//	  weights 1
//	  ...
//
//	JSON: an object with the Spec field tags (planes, input_min, ...).
//
// Both readers return errors wrapping ErrMalformedNetwork.

package nn

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Text keywords.
const (
	kwPlanes    = "planes"
	kwInputMin  = "input_min"
	kwInputMax  = "input_max"
	kwOutputMin = "output_min"
	kwOutputMax = "output_max"
	kwBias      = "bias"
	kwWeights   = "weights"
)

// ReadText parses the line-oriented text encoding and builds a Model.
func ReadText(r io.Reader, opts ...Option) (*Model, error) {
	s, err := parseText(r)
	if err != nil {
		return nil, nnErrorf(opReadText, err)
	}
	m, err := NewModel(s, opts...)
	if err != nil {
		return nil, nnErrorf(opReadText, err)
	}

	return m, nil
}

// ReadJSON decodes the JSON encoding and builds a Model.
// Unknown fields are rejected so that typos in hand-edited files surface.
func ReadJSON(r io.Reader, opts ...Option) (*Model, error) {
	var s Spec
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, nnErrorf(opReadJSON, fmt.Errorf("%v: %w", err, ErrMalformedNetwork))
	}
	m, err := NewModel(s, opts...)
	if err != nil {
		return nil, nnErrorf(opReadJSON, err)
	}

	return m, nil
}

// LoadFile opens path and dispatches on its extension: ".json" uses ReadJSON,
// anything else ReadText. A missing file is reported as ErrMalformedNetwork
// as well, since for a run both mean "no usable network".
func LoadFile(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nnErrorf(opLoadFile, fmt.Errorf("%v: %w", err, ErrMalformedNetwork))
	}
	defer f.Close()

	var m *Model
	if strings.EqualFold(filepath.Ext(path), ".json") {
		m, err = ReadJSON(f, opts...)
	} else {
		m, err = ReadText(bufio.NewReader(f), opts...)
	}
	if err != nil {
		return nil, nnErrorf(opLoadFile, fmt.Errorf("%s: %w", path, err))
	}

	return m, nil
}

// WriteJSON encodes s in the JSON weight format (indentation for diffability).
func WriteJSON(w io.Writer, s Spec) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(s)
}

// textParser tracks where we are inside a "weights" block.
type textParser struct {
	spec     Spec
	line     int
	layer    int // layer whose weight rows are being read, -1 if none
	rowsLeft int
}

func parseText(r io.Reader) (Spec, error) {
	p := &textParser{layer: -1}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		p.line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if err := p.consume(fields); err != nil {
			return Spec{}, fmt.Errorf("line %d: %v: %w", p.line, err, ErrMalformedNetwork)
		}
	}
	if err := sc.Err(); err != nil {
		return Spec{}, fmt.Errorf("%v: %w", err, ErrMalformedNetwork)
	}
	if p.rowsLeft > 0 {
		return Spec{}, fmt.Errorf("layer %d: %d weight rows missing: %w", p.layer, p.rowsLeft, ErrMalformedNetwork)
	}

	return p.spec, nil
}

func (p *textParser) consume(fields []string) error {
	if p.rowsLeft > 0 {
		row, err := parseFloats(fields)
		if err != nil {
			return err
		}
		p.spec.Weights[p.layer] = append(p.spec.Weights[p.layer], row)
		p.rowsLeft--

		return nil
	}

	switch kw, args := fields[0], fields[1:]; kw {
	case kwPlanes:
		planes := make([]int, len(args))
		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil {
				return err
			}
			if v <= 0 {
				return fmt.Errorf("plane %d has size %d", i, v)
			}
			planes[i] = v
		}
		if len(planes) < 2 {
			return fmt.Errorf("planes needs at least 2 sizes")
		}
		p.spec.Planes = planes
		p.spec.Biases = make([][]float64, len(planes)-1)
		p.spec.Weights = make([][][]float64, len(planes)-1)
	case kwInputMin, kwInputMax, kwOutputMin, kwOutputMax:
		v, err := parseFloats(args)
		if err != nil {
			return err
		}
		switch kw {
		case kwInputMin:
			p.spec.InputMin = v
		case kwInputMax:
			p.spec.InputMax = v
		case kwOutputMin:
			p.spec.OutputMin = v
		default:
			p.spec.OutputMax = v
		}
	case kwBias:
		l, err := p.layerIndex(args)
		if err != nil {
			return err
		}
		v, err := parseFloats(args[1:])
		if err != nil {
			return err
		}
		p.spec.Biases[l] = v
	case kwWeights:
		l, err := p.layerIndex(args)
		if err != nil {
			return err
		}
		// Rows are appended as they arrive; the declared count is untrusted.
		p.layer, p.rowsLeft = l, p.spec.Planes[l+1]
		p.spec.Weights[l] = nil
	default:
		return fmt.Errorf("unknown keyword %q", kw)
	}

	return nil
}

// layerIndex parses args[0] as a layer number; planes must already be known.
func (p *textParser) layerIndex(args []string) (int, error) {
	if p.spec.Planes == nil {
		return 0, fmt.Errorf("layer data before planes")
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("missing layer index")
	}
	l, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if l < 0 || l >= len(p.spec.Planes)-1 {
		return 0, fmt.Errorf("layer %d out of range", l)
	}

	return l, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}
