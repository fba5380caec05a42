// SPDX-License-Identifier: MIT
package nn_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/oceanfit/nn"
)

// TestLoadFileFormatsAgree loads the same network from both encodings and
// compares outputs with the in-code Spec.
func TestLoadFileFormatsAgree(t *testing.T) {
	ref := mustTiny(t)
	x := []float64{0.25, 1.5, 2.0}
	want, err := ref.Evaluate(x)
	require.NoError(t, err)

	for _, name := range []string{"tiny.net", "tiny.json"} {
		t.Run(name, func(t *testing.T) {
			m, err := nn.LoadFile(filepath.Join("testdata", name))
			require.NoError(t, err)
			got, err := m.Evaluate(x)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := nn.LoadFile(filepath.Join("testdata", "nope.net"))
	require.ErrorIs(t, err, nn.ErrMalformedNetwork)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, nn.WriteJSON(&buf, tinySpec()))

	m, err := nn.ReadJSON(&buf)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 2}, m.Planes())
}

func TestReadTextMalformed(t *testing.T) {
	cases := map[string]string{
		"unknown keyword":   "planes 1 1\nfoo 1\n",
		"bias before plane": "bias 0 1\n",
		"bad number":        "planes 1 1\ninput_min x\n",
		"layer range":       "planes 1 1\nbias 3 1\n",
		"missing rows":      "planes 2 2\nweights 0\n1 2\n",
		"single plane":      "planes 4\n",
		"incomplete spec":   "planes 1 1\n",
		"negative plane":    "planes 2 -1\nweights 0\n",
		"zero plane":        "planes 0 2\n",
		"huge plane":        "planes 2 9223372036854775807\nweights 0\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := nn.ReadText(strings.NewReader(src))
			require.ErrorIs(t, err, nn.ErrMalformedNetwork)
		})
	}
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	_, err := nn.ReadJSON(strings.NewReader(`{"planes":[1,1],"layers":3}`))
	require.ErrorIs(t, err, nn.ErrMalformedNetwork)
}
