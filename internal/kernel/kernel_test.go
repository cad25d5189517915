package kernel

import (
	"math"
	"testing"
)

func constantVoice(frames int, value int16) Voice {
	data := make([]int16, frames*2)
	for i := range data {
		data[i] = value
	}
	return Voice{Data: data, Frames: frames, Loop: -1, Speed: 1}
}

func TestFadeoutEnvelopeIsMonotonic(t *testing.T) {
	env := FadeoutEnvelope(FadeoutLength)
	if env[0] != 1 {
		t.Fatalf("env[0] = %v, want 1", env[0])
	}
	if env[len(env)-1] != 0 {
		t.Fatalf("env[last] = %v, want 0", env[len(env)-1])
	}
	for i := 1; i < len(env); i++ {
		if env[i] > env[i-1] {
			t.Fatalf("envelope rises at %d: %v > %v", i, env[i], env[i-1])
		}
	}
	// steep power curve: a tenth of the way in the level is still above half
	if env[FadeoutLength/10] < 0.5 {
		t.Fatalf("early release too quiet: %v", env[FadeoutLength/10])
	}
}

func TestSpeedRatioOctave(t *testing.T) {
	if got := SpeedRatio(12); math.Abs(got-2) > 1e-9 {
		t.Fatalf("SpeedRatio(12) = %v, want 2", got)
	}
	if got := SpeedRatio(0); got != 1 {
		t.Fatalf("SpeedRatio(0) = %v, want 1", got)
	}
}

func TestMixSumsAndEnds(t *testing.T) {
	voices := []Voice{constantVoice(10, 16384), constantVoice(100, 16384)}
	dst := make([]float32, 2*32)
	Default{}.Mix(dst, voices, FadeoutEnvelope(8))
	if !voices[0].Ended {
		t.Fatalf("short voice should end")
	}
	if voices[1].Ended {
		t.Fatalf("long voice should keep playing")
	}
	if got := dst[0]; math.Abs(float64(got)-1) > 1e-6 {
		t.Fatalf("first frame = %v, want 1 (two half-scale voices)", got)
	}
	if got := dst[2*20]; math.Abs(float64(got)-0.5) > 1e-6 {
		t.Fatalf("frame 20 = %v, want 0.5", got)
	}
}

func TestMixLoopsForever(t *testing.T) {
	v := constantVoice(16, 1000)
	v.Loop = 4
	voices := []Voice{v}
	dst := make([]float32, 2*512)
	for i := 0; i < 10; i++ {
		Default{}.Mix(dst, voices, nil)
		if voices[0].Ended {
			t.Fatalf("looping voice ended on pass %d", i)
		}
	}
	if voices[0].Pos < 4 || voices[0].Pos >= 15 {
		t.Fatalf("pos %v escaped loop region", voices[0].Pos)
	}
}

func TestMixFadeoutEnds(t *testing.T) {
	v := constantVoice(1000, 1000)
	v.Loop = 0
	v.Fading = true
	voices := []Voice{v}
	dst := make([]float32, 2*64)
	env := FadeoutEnvelope(100)
	Default{}.Mix(dst, voices, env)
	if voices[0].Ended {
		t.Fatalf("voice ended before fadeout finished")
	}
	Default{}.Mix(dst, voices, env)
	if !voices[0].Ended {
		t.Fatalf("voice should end once fadeout is exhausted")
	}
}

func TestConvert24To16(t *testing.T) {
	src := []byte{0x11, 0x34, 0x12, 0xff, 0xff, 0x80}
	got := Default{}.Convert24To16(src)
	if len(got) != 2 || got[0] != 0x1234 || got[1] != int16(-32513) {
		t.Fatalf("Convert24To16 = %#v", got)
	}
}
