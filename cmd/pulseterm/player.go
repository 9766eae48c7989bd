package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// player voices synthesized replies through the system speakers. One clip
// plays at a time; a new clip waits for the previous one.
type player struct {
	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate
}

func newPlayer() *player {
	return &player{}
}

func (p *player) Play(data []byte, format string) error {
	if len(data) == 0 {
		return nil
	}
	if format != "" && !strings.HasPrefix(format, "audio/mpeg") && !strings.HasPrefix(format, "audio/mp3") {
		return fmt.Errorf("unsupported audio format %q", format)
	}

	streamer, fmtInfo, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	p.mu.Lock()
	if !p.initialized || p.sampleRate != fmtInfo.SampleRate {
		if err := speaker.Init(fmtInfo.SampleRate, fmtInfo.SampleRate.N(time.Second/10)); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("init speaker: %w", err)
		}
		p.initialized = true
		p.sampleRate = fmtInfo.SampleRate
	}
	p.mu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
