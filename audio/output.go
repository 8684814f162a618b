package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// DefaultSampleRate is the rate every synthesized and decoded stream is rendered at
const DefaultSampleRate = beep.SampleRate(48000)

// Output is the playback device behind the engine
// Lock/Unlock guard mutation of streamers that are already playing
type Output interface {
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close() error
}

// speakerOutput plays through the system speaker via beep
type speakerOutput struct {
	mu     sync.Mutex
	closed bool
}

// NewSpeakerOutput initializes the system speaker at rate with the given buffer latency
// Returns an error when no audio device is available
func NewSpeakerOutput(rate beep.SampleRate, buffer time.Duration) (Output, error) {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return nil, err
	}
	return &speakerOutput{}, nil
}

func (o *speakerOutput) Play(s beep.Streamer) {
	speaker.Play(s)
}

func (o *speakerOutput) Lock()   { speaker.Lock() }
func (o *speakerOutput) Unlock() { speaker.Unlock() }

// Close clears all streamers and releases the device, idempotent
func (o *speakerOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	speaker.Clear()
	speaker.Close()
	return nil
}

// NullOutput discards all playback
type NullOutput struct{}

func (NullOutput) Play(beep.Streamer) {}
func (NullOutput) Lock()              {}
func (NullOutput) Unlock()            {}
func (NullOutput) Close() error       { return nil }
