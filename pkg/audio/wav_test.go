package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := int16LE(1, 2, 3, 4)
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("EncodeWAV length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("EncodeWAV missing RIFF/WAVE magic: %q %q", wav[0:4], wav[8:12])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Fatalf("EncodeWAV sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Fatalf("EncodeWAV channels = %d, want 1", ch)
	}
	if string(wav[44:]) != string(pcm) {
		t.Fatalf("EncodeWAV payload mismatch")
	}
}

func TestParseWAVRoundTrip(t *testing.T) {
	pcm := int16LE(10, -10, 20, -20)
	wav := EncodeWAV(pcm, 24000, 2)

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV() error = %v", err)
	}
	if info.SampleRate != 24000 || info.Channels != 2 {
		t.Fatalf("ParseWAV format = %d/%d, want 24000/2", info.SampleRate, info.Channels)
	}
	got := wav[info.DataOffset : info.DataOffset+info.DataLen]
	if string(got) != string(pcm) {
		t.Fatalf("ParseWAV payload = %v, want %v", got, pcm)
	}
}

func TestParseWAVSkipsExtraChunks(t *testing.T) {
	pcm := int16LE(7, 8)
	wav := EncodeWAV(pcm, 16000, 1)

	// Splice a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(list[4:8], 4)
	list = append(list, []byte("INFO")...)
	spliced := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	info, err := ParseWAV(spliced)
	if err != nil {
		t.Fatalf("ParseWAV() with LIST chunk error = %v", err)
	}
	got := spliced[info.DataOffset : info.DataOffset+info.DataLen]
	if string(got) != string(pcm) {
		t.Fatalf("ParseWAV payload = %v, want %v", got, pcm)
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	if _, err := ParseWAV([]byte("definitely not audio")); err == nil {
		t.Fatalf("ParseWAV(garbage) expected error, got nil")
	}
	if _, err := ParseWAV(nil); err == nil {
		t.Fatalf("ParseWAV(nil) expected error, got nil")
	}
}
