package delivery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/hajimehoshi/oto/v2"
)

// maxCueLength bounds how long a single cue may hold its player.
const maxCueLength = 30 * time.Second

// OtoPlayer plays an MP3 cue through the system audio device. Playback
// runs in the background; Play returns once it has started.
type OtoPlayer struct {
	data   []byte
	volume float64

	mu      sync.Mutex
	otoCtx  *oto.Context
	rate    int
	initErr error
}

// NewOtoPlayer loads the MP3 file at path. volume is clamped to [0, 1].
func NewOtoPlayer(path string, volume float64) (*OtoPlayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sound file %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("sound file %s is empty", path)
	}
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	return &OtoPlayer{data: data, volume: volume}, nil
}

// Play starts the cue.
func (p *OtoPlayer) Play(ctx context.Context) error {
	decoder, err := mp3.NewDecoder(bytes.NewReader(p.data))
	if err != nil {
		return fmt.Errorf("mp3 decoder: %w", err)
	}

	otoCtx, err := p.context(decoder.SampleRate())
	if err != nil {
		return err
	}

	player := otoCtx.NewPlayer(decoder)
	player.SetVolume(p.volume)
	player.Play()

	go drain(player)
	return nil
}

// context returns the process-wide oto context, creating it on first use.
// oto allows a single context per process, so later cues must share the
// first sample rate.
func (p *OtoPlayer) context(sampleRate int) (*oto.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initErr != nil {
		return nil, p.initErr
	}
	if p.otoCtx != nil {
		if sampleRate != p.rate {
			return nil, fmt.Errorf("sample rate %d differs from audio context rate %d", sampleRate, p.rate)
		}
		return p.otoCtx, nil
	}

	otoCtx, ready, err := oto.NewContext(sampleRate, 2, 2)
	if err != nil {
		p.initErr = fmt.Errorf("oto context: %w", err)
		return nil, p.initErr
	}
	<-ready

	p.otoCtx = otoCtx
	p.rate = sampleRate
	return otoCtx, nil
}

// drain waits for playback to finish and releases the player.
func drain(player oto.Player) {
	defer player.Close()

	deadline := time.After(maxCueLength)
	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-deadline:
			return
		case <-ticker.C:
		}
	}
}
