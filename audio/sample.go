package audio

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// ErrNoSample is returned by loaders that have nothing for a sound id
var ErrNoSample = errors.New("sample not available")

// resampleQuality trades CPU for fidelity when a file rate differs from the output rate
const resampleQuality = 4

// SampleLoader fetches pre-rendered sounds decoded into memory at the output rate
type SampleLoader interface {
	Load(id string, rate beep.SampleRate) (*beep.Buffer, error)
}

// NoSamples is a loader without any assets, every effect is synthesized
type NoSamples struct{}

func (NoSamples) Load(id string, rate beep.SampleRate) (*beep.Buffer, error) {
	return nil, ErrNoSample
}

// DirLoader reads mp3 and wav files named by sound id from a directory
// A missing .mp3 is also looked up with a .wav extension
type DirLoader struct {
	Dir string
}

func (l DirLoader) Load(id string, rate beep.SampleRate) (*beep.Buffer, error) {
	if l.Dir == "" || id == "" {
		return nil, ErrNoSample
	}

	candidates := []string{id}
	if strings.HasSuffix(id, ".mp3") {
		candidates = append(candidates, strings.TrimSuffix(id, ".mp3")+".wav")
	}

	var lastErr error = ErrNoSample
	for _, name := range candidates {
		buf, err := decodeFile(filepath.Join(l.Dir, name), rate)
		if err == nil {
			return buf, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// decodeFile decodes a whole file into a buffer at rate
func decodeFile(path string, rate beep.SampleRate) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	default:
		err = fmt.Errorf("unsupported sample format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	defer stream.Close()

	var src beep.Streamer = stream
	if format.SampleRate != rate {
		src = beep.Resample(resampleQuality, format.SampleRate, rate, stream)
	}

	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(src)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("empty sample %s", path)
	}
	return buf, nil
}

// sampleCache remembers decoded buffers and load failures per sound id
// A failed sound is never retried, synthesis replaces it for the process lifetime
type sampleCache struct {
	mu      sync.RWMutex
	loader  SampleLoader
	rate    beep.SampleRate
	store   map[string]*beep.Buffer
	missing map[string]bool

	missed *atomic.Int64
}

func newSampleCache(loader SampleLoader, rate beep.SampleRate, missed *atomic.Int64) *sampleCache {
	if loader == nil {
		loader = NoSamples{}
	}
	if missed == nil {
		missed = new(atomic.Int64)
	}
	return &sampleCache{
		loader:  loader,
		rate:    rate,
		store:   make(map[string]*beep.Buffer),
		missing: make(map[string]bool),
		missed:  missed,
	}
}

// get returns the cached buffer or loads it on demand, nil when unavailable
func (c *sampleCache) get(id string) *beep.Buffer {
	c.mu.RLock()
	if buf, ok := c.store[id]; ok {
		c.mu.RUnlock()
		return buf
	}
	if c.missing[id] {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, ok := c.store[id]; ok {
		return buf
	}
	if c.missing[id] {
		return nil
	}

	buf, err := c.loader.Load(id, c.rate)
	if err != nil {
		if !errors.Is(err, ErrNoSample) && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[audio] sample %s unavailable: %v", id, err)
		}
		c.missing[id] = true
		c.missed.Add(1)
		return nil
	}
	c.store[id] = buf
	return buf
}

// isMissing reports whether id already failed to load
func (c *sampleCache) isMissing(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.missing[id]
}
