package audio

import (
	"math"
	"testing"
)

func TestPCM16Roundtrip(t *testing.T) {
	t.Parallel()

	in := []float64{0, 0.5, -0.5, 0.999, -0.999}
	out := FromPCM16(PCM16(in))

	if len(out) != len(in) {
		t.Fatalf("roundtrip length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(out[i]-in[i]) > 1.0/32767 {
			t.Errorf("sample %d: %v -> %v, want within one quantisation step", i, in[i], out[i])
		}
	}
}

func TestPCM16_Clipping(t *testing.T) {
	t.Parallel()

	out := FromPCM16(PCM16([]float64{2.0, -2.0}))
	if out[0] < 0.999 {
		t.Errorf("over-range sample = %v, want clipped to ~1.0", out[0])
	}
	if out[1] > -0.999 {
		t.Errorf("under-range sample = %v, want clipped to ~-1.0", out[1])
	}
}

func TestFromPCM16_OddTrailingByte(t *testing.T) {
	t.Parallel()

	got := FromPCM16([]byte{0x00, 0x40, 0x7f})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (trailing byte ignored)", len(got))
	}
	if want := float64(0x4000) / 32768.0; got[0] != want {
		t.Errorf("sample = %v, want %v", got[0], want)
	}
}

func TestFloat32s(t *testing.T) {
	t.Parallel()

	got := Float32s([]float64{0.25, -0.75})
	if len(got) != 2 || got[0] != 0.25 || got[1] != -0.75 {
		t.Errorf("Float32s = %v, want [0.25 -0.75]", got)
	}
}
