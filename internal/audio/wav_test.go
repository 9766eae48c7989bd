package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := make([]byte, 3200) // 100ms at 16kHz mono
	wav := EncodeWAVPCM16LE(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
}

func TestEncodeWAVPCM16LEDefaultsSampleRate(t *testing.T) {
	wav := EncodeWAVPCM16LE(nil, 0)
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != DefaultSampleRate {
		t.Fatalf("sample rate = %d, want %d", got, DefaultSampleRate)
	}
}

func TestPCM16Duration(t *testing.T) {
	if got := PCM16Duration(32000, 16000); got != time.Second {
		t.Fatalf("PCM16Duration = %v, want 1s", got)
	}
	if got := PCM16Duration(1600, 16000); got != 50*time.Millisecond {
		t.Fatalf("PCM16Duration = %v, want 50ms", got)
	}
}
