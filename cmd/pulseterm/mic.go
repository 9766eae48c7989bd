package main

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/antoniostano/pulse/internal/audio"
)

// 100ms of mono audio per chunk at the capture rate.
const micFramesPerBuffer = audio.DefaultSampleRate / 10

// mic streams microphone PCM to the server while recording is active.
type mic struct {
	emit func(pcm []byte, seq, sampleRate int)

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	running bool
	seq     int
}

func newMic(emit func(pcm []byte, seq, sampleRate int)) (*mic, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &mic{emit: emit}, nil
}

func (m *mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	m.buf = make([]int16, micFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.DefaultSampleRate), micFramesPerBuffer, m.buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	m.stream = stream
	m.running = true
	m.seq = 0
	go m.captureLoop(stream)
	return nil
}

func (m *mic) captureLoop(stream *portaudio.Stream) {
	for {
		m.mu.Lock()
		if !m.running || m.stream != stream {
			m.mu.Unlock()
			return
		}
		buf := m.buf
		m.mu.Unlock()

		if err := stream.Read(); err != nil {
			return
		}

		pcm := make([]byte, len(buf)*2)
		for i, sample := range buf {
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
		}

		m.mu.Lock()
		seq := m.seq
		m.seq++
		running := m.running
		m.mu.Unlock()
		if !running {
			return
		}
		m.emit(pcm, seq, audio.DefaultSampleRate)
	}
}

func (m *mic) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	if m.stream != nil {
		_ = m.stream.Stop()
		_ = m.stream.Close()
		m.stream = nil
	}
}

func (m *mic) Close() {
	m.Stop()
	_ = portaudio.Terminate()
}
