package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"
)

const DefaultSampleRate = 16000

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
// Recording buffers are uploaded to the transcription endpoint in this form.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail.
	_ = WriteWAVPCM16LETo(&buf, pcm, sampleRate)
	return buf.Bytes()
}

// WriteWAVPCM16LETo writes raw PCM16LE mono audio bytes to out as a WAV stream.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	var header bytes.Buffer
	header.WriteString("RIFF")
	binary.Write(&header, binary.LittleEndian, uint32(36)+dataSize)
	header.WriteString("WAVE")

	header.WriteString("fmt ")
	binary.Write(&header, binary.LittleEndian, uint32(16))
	binary.Write(&header, binary.LittleEndian, uint16(audioFormat))
	binary.Write(&header, binary.LittleEndian, uint16(numChannels))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&header, binary.LittleEndian, byteRate)
	binary.Write(&header, binary.LittleEndian, blockAlign)
	binary.Write(&header, binary.LittleEndian, uint16(bitsPerSample))

	header.WriteString("data")
	binary.Write(&header, binary.LittleEndian, dataSize)

	if _, err := out.Write(header.Bytes()); err != nil {
		return err
	}
	_, err := out.Write(pcm)
	return err
}

// PCM16Duration reports how much audio a PCM16LE mono buffer holds.
func PCM16Duration(n int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
