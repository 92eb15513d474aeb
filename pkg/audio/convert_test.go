package audio

import (
	"testing"
	"time"
)

func int16LE(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

func TestMonoToStereo(t *testing.T) {
	in := int16LE(100, -200)
	got := MonoToStereo(in)
	want := int16LE(100, 100, -200, -200)
	if string(got) != string(want) {
		t.Fatalf("MonoToStereo(%v) = %v, want %v", in, got, want)
	}
}

func TestStereoToMonoAverages(t *testing.T) {
	in := int16LE(100, 300, -100, -300)
	got := StereoToMono(in)
	want := int16LE(200, -200)
	if string(got) != string(want) {
		t.Fatalf("StereoToMono(%v) = %v, want %v", in, got, want)
	}
}

func TestStereoToMonoClamps(t *testing.T) {
	in := int16LE(32767, 32767)
	got := StereoToMono(in)
	want := int16LE(32767)
	if string(got) != string(want) {
		t.Fatalf("StereoToMono overflow = %v, want %v", got, want)
	}
}

func TestResampleMono16SameRate(t *testing.T) {
	in := int16LE(1, 2, 3)
	got := ResampleMono16(in, 16000, 16000)
	if &got[0] != &in[0] {
		t.Fatalf("ResampleMono16 with equal rates should return input unchanged")
	}
}

func TestResampleMono16Halves(t *testing.T) {
	in := int16LE(0, 0, 0, 0, 0, 0, 0, 0)
	got := ResampleMono16(in, 32000, 16000)
	if len(got) != len(in)/2 {
		t.Fatalf("ResampleMono16 32k->16k output %d bytes, want %d", len(got), len(in)/2)
	}
}

func TestResampleMono16Doubles(t *testing.T) {
	in := int16LE(100, 200, 300, 400)
	got := ResampleMono16(in, 8000, 16000)
	if len(got) != len(in)*2 {
		t.Fatalf("ResampleMono16 8k->16k output %d bytes, want %d", len(got), len(in)*2)
	}
}

func TestFormatConverterFastPath(t *testing.T) {
	conv := FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	in := int16LE(5, 6, 7)
	got := conv.Convert(in, 16000, 1)
	if &got[0] != &in[0] {
		t.Fatalf("Convert with matching format should return input unchanged")
	}
}

func TestFormatConverterDownmixAndResample(t *testing.T) {
	conv := FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	// 48 kHz stereo: 48 stereo frames -> 16 mono samples.
	in := make([]byte, 48*4)
	got := conv.Convert(in, 48000, 2)
	if len(got) != 16*2 {
		t.Fatalf("Convert 48k stereo -> 16k mono output %d bytes, want %d", len(got), 16*2)
	}
}

func TestFormatConverterOddBytes(t *testing.T) {
	conv := FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	got := conv.Convert([]byte{1, 2, 3}, 16000, 1)
	if got != nil {
		t.Fatalf("Convert with odd byte count = %v, want nil", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS(int16LE(0, 0, 0)); got != 0 {
		t.Fatalf("RMS(silence) = %v, want 0", got)
	}
	got := RMS(int16LE(1000, -1000, 1000, -1000))
	if got < 999 || got > 1001 {
		t.Fatalf("RMS(square wave 1000) = %v, want ~1000", got)
	}
}

func TestZeroFrame(t *testing.T) {
	f := ZeroFrame(500*time.Millisecond, 16000, 1, 0)
	if len(f.Data) != 16000 {
		t.Fatalf("ZeroFrame(500ms) data = %d bytes, want 16000", len(f.Data))
	}
	for _, b := range f.Data {
		if b != 0 {
			t.Fatalf("ZeroFrame data not all zero")
		}
	}
}

func TestFrameDuration(t *testing.T) {
	f := AudioFrame{Data: make([]byte, 16000), SampleRate: 16000, Channels: 1}
	if got := f.Duration().Milliseconds(); got != 500 {
		t.Fatalf("Duration() = %dms, want 500ms", got)
	}
}
