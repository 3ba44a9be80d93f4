package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleNV21Packed(t *testing.T) {
	y := Plane{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, RowStride: 4, PixelStride: 1}
	u := Plane{Data: []byte{20, 21}, RowStride: 2, PixelStride: 1}
	v := Plane{Data: []byte{30, 31}, RowStride: 2, PixelStride: 1}

	nv21 := AssembleNV21(y, u, v)

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 30, 31, 20, 21}, nv21)
	assert.Equal(t, []byte{20, 21}, u.Data, "input planes must not change")
	assert.Equal(t, []byte{30, 31}, v.Data, "input planes must not change")
}

func TestAssembleNV21SemiPlanar(t *testing.T) {
	// One interleaved VU buffer; the V and U views overlap and are one byte short, as camera HALs
	// expose them.
	chroma := []byte{30, 20, 31, 21}
	y := Plane{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, RowStride: 4, PixelStride: 1}
	v := Plane{Data: chroma[0:3], RowStride: 4, PixelStride: 2}
	u := Plane{Data: chroma[1:4], RowStride: 4, PixelStride: 2}

	nv21 := AssembleNV21(y, u, v)

	require.Len(t, nv21, 8+3+3)
	assert.Equal(t, []byte{30, 20, 31}, nv21[8:11], "V view first, keeping the VU interleave")
	assert.Equal(t, []byte{20, 31, 21}, nv21[11:])
	assert.Equal(t, []byte{30, 20, 31, 21}, chroma)
}

func TestSquareCrop(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want [4]int
	}{
		{"landscape", 1920, 1080, [4]int{420, 0, 1500, 1080}},
		{"portrait", 1080, 1920, [4]int{0, 420, 1080, 1500}},
		{"square", 640, 640, [4]int{0, 0, 640, 640}},
		{"odd margin rounds down", 5, 2, [4]int{1, 0, 3, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := SquareCrop(tt.w, tt.h)
			assert.Equal(t, tt.want, [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y})
			assert.Equal(t, r.Dx(), r.Dy())
		})
	}
}

func TestPixelFormatString(t *testing.T) {
	assert.Equal(t, "JPEG", FormatJPEG.String())
	assert.Equal(t, "YUV_420_888", FormatYUV420888.String())
	assert.Equal(t, "PixelFormat(0)", FormatUnknown.String())
}

func TestParseRotation(t *testing.T) {
	for _, deg := range []int{0, 90, 180, 270} {
		r, err := ParseRotation(deg)
		require.NoError(t, err)
		assert.Equal(t, deg, int(r))
	}

	for _, deg := range []int{-90, 45, 360} {
		_, err := ParseRotation(deg)
		assert.ErrorIs(t, err, InvalidRotation, "%d", deg)
	}
}

func TestReleaseRunsOnce(t *testing.T) {
	calls := 0
	f := NewJPEGFrame(nil, 1, 1, Rotate0)
	f.ReleaseFunc = func() { calls++ }

	f.Release()
	f.Release()

	assert.True(t, f.Released())
	assert.Equal(t, 1, calls)
}
