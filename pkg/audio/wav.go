package audio

import (
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the size of a canonical 44-byte RIFF/WAVE header.
const wavHeaderSize = 44

// EncodeWAV wraps raw little-endian int16 PCM in a canonical RIFF/WAVE header.
// The result is suitable for multipart upload to transcription services.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	dataLen := len(pcm)
	buf := make([]byte, wavHeaderSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	byteRate := sampleRate * channels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	blockAlign := channels * 2
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[wavHeaderSize:], pcm)

	return buf
}

// WAVInfo describes the PCM payload found inside a RIFF/WAVE container.
type WAVInfo struct {
	// DataOffset is the byte offset of the PCM payload within the container.
	DataOffset int

	// DataLen is the PCM payload length in bytes.
	DataLen int

	SampleRate int
	Channels   int
}

// ParseWAV walks the RIFF chunk list of a WAVE container and locates the fmt
// and data chunks. Only 16-bit PCM is supported; compressed formats return an
// error. Synthesis backends return WAV containers whose PCM this extracts for
// playback.
func ParseWAV(data []byte) (WAVInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("audio: not a RIFF/WAVE container")
	}

	info := WAVInfo{}
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return WAVInfo{}, fmt.Errorf("audio: truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return WAVInfo{}, fmt.Errorf("audio: unsupported WAV format code %d (want PCM)", format)
			}
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return WAVInfo{}, fmt.Errorf("audio: unsupported WAV bit depth %d (want 16)", bits)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			if body+chunkLen > len(data) {
				chunkLen = len(data) - body
			}
			info.DataOffset = body
			info.DataLen = chunkLen
			if haveFmt {
				return info, nil
			}
		}

		// Chunks are word-aligned.
		pos = body + chunkLen
		if chunkLen%2 == 1 {
			pos++
		}
	}

	if haveFmt && info.DataLen > 0 {
		return info, nil
	}
	return WAVInfo{}, fmt.Errorf("audio: WAV container missing fmt or data chunk")
}
