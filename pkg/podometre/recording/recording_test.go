package recording

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int, freq, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWAVRoundTrip(t *testing.T) {
	for _, depth := range []int{16, 24} {
		path := filepath.Join(t.TempDir(), "walk.wav")
		in := &Recording{SampleRate: 100, Samples: sine(1024, 100, 2, 0.5)}

		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, WriteWAV(f, in, depth))
		require.NoError(t, f.Close())

		out, err := Load(path, 0)
		require.NoError(t, err)
		assert.Equal(t, 100, out.SampleRate)
		require.Len(t, out.Samples, 1024)
		for i := range in.Samples {
			assert.InDelta(t, in.Samples[i], out.Samples[i], 1e-3, "depth %d sample %d", depth, i)
		}
	}
}

func TestWriteWAVRejectsBadInput(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	require.NoError(t, err)
	defer f.Close()

	assert.Error(t, WriteWAV(f, &Recording{SampleRate: 0, Samples: []float64{0}}, 16))
	assert.Error(t, WriteWAV(f, &Recording{SampleRate: 100, Samples: []float64{0}}, 12))
}

func TestReadWAVInvalid(t *testing.T) {
	_, err := ReadWAV(strings.NewReader("INVALID HEADER DATA"))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		col   int
		want  []float64
	}{
		{"single column", "1.5\n2\n-3\n", -1, []float64{1.5, 2, -3}},
		{"header skipped", "z\n0.1\n0.2\n", -1, []float64{0.1, 0.2}},
		{"last column", "t,z\n0,9.8\n0.01,9.9\n", -1, []float64{9.8, 9.9}},
		{"explicit column", "0,9.8\n0.01,9.9\n", 0, []float64{0, 0.01}},
		{"comments", "# phone export\n1\n2\n", -1, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ReadCSV(strings.NewReader(tt.input), tt.col)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Samples)
			assert.Zero(t, rec.SampleRate)
		})
	}
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("1\nabc\n"), -1)
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("1,2\n3,4\n"), 5)
	assert.Error(t, err)
}

func TestReadJSON(t *testing.T) {
	rec, err := ReadJSON(strings.NewReader(`[1, 2.5, null, -4]`))
	require.NoError(t, err)
	require.Len(t, rec.Samples, 4)
	assert.Equal(t, 2.5, rec.Samples[1])
	assert.True(t, math.IsNaN(rec.Samples[2]))

	rec, err = ReadJSON(strings.NewReader(`{"samplingFrequency": 50, "verticalAccelerations": [9.7, 9.9]}`))
	require.NoError(t, err)
	assert.Equal(t, 50, rec.SampleRate)
	assert.Equal(t, []float64{9.7, 9.9}, rec.Samples)

	_, err = ReadJSON(strings.NewReader(`{"verticalAccelerations": "nope"}`))
	assert.Error(t, err)
}

func TestLoadUsesFallbackRate(t *testing.T) {
	path := writeFile(t, "trace.csv", "1\n2\n3\n4\n")
	rec, err := Load(path, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.SampleRate)
	assert.InDelta(t, 0.04, rec.Duration(), 1e-12)

	path = writeFile(t, "trace.json", `{"samplingFrequency": 25, "verticalAccelerations": [1]}`)
	rec, err = Load(path, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, rec.SampleRate)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "trace.mp3", "x"), 100)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(writeFile(t, "empty.csv", "z\n"), 100)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), 100)
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	rec := &Recording{SampleRate: 10, Samples: sine(10, 10, 1, 1)}

	chunks := rec.Chunk(4)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[2], 2)

	assert.Nil(t, rec.Chunk(0))
	assert.Len(t, rec.Chunk(100), 1)
}
