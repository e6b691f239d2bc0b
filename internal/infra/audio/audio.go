// Package audio decodes media with ffmpeg and encodes it to opus frames.
package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"layeh.com/gopus"
)

const (
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 960 // 20ms at 48kHz

	frameBytes    = FrameSize * Channels * 2
	maxOpusBytes  = 4000
	readBufferLen = 32 * 1024
)

// ErrFinished is returned when controlling a playback that already ended.
var ErrFinished = errors.New("playback already finished")

// FrameEncoder encodes one PCM frame.
type FrameEncoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// Config represents audio pipeline configuration.
type Config struct {
	FFmpegPath  string
	BitrateKbps int
}

// Player starts playbacks.
type Player struct {
	ffmpegPath string
	bitrate    int
}

// NewPlayer creates a new player.
func NewPlayer(cfg Config) *Player {
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	bitrate := cfg.BitrateKbps
	if bitrate <= 0 {
		bitrate = 64
	}
	return &Player{ffmpegPath: path, bitrate: bitrate * 1000}
}

// Play decodes streamURL and sends opus frames to out until the stream ends
// or the playback is stopped.
func (p *Player) Play(streamURL string, out chan<- []byte) (*Playback, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create opus encoder")
	}
	enc.SetBitrate(p.bitrate)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", streamURL,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to create ffmpeg output pipe")
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}

	pb := newPlayback(cancel)
	go func() {
		err := pb.stream(ctx, bufio.NewReaderSize(stdout, readBufferLen), enc, out)
		waitErr := cmd.Wait()
		if err == nil && waitErr != nil && ctx.Err() == nil {
			err = errors.Wrapf(waitErr, "ffmpeg: %s", bytes.TrimSpace(stderr.Bytes()))
		}
		pb.finish(err)
	}()

	return pb, nil
}

// Playback is one running stream.
type Playback struct {
	cancel context.CancelFunc

	mu        sync.Mutex
	paused    chan struct{} // non-nil while paused, closed on resume
	finished  bool
	callbacks []func()
}

func newPlayback(cancel context.CancelFunc) *Playback {
	return &Playback{
		cancel: cancel,
	}
}

// Stop ends the playback. Finish callbacks still run.
func (pb *Playback) Stop() error {
	pb.cancel()
	return nil
}

// Pause holds frame output until Resume.
func (pb *Playback) Pause() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.finished {
		return ErrFinished
	}
	if pb.paused == nil {
		pb.paused = make(chan struct{})
	}
	return nil
}

// Resume continues a paused playback.
func (pb *Playback) Resume() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.finished {
		return ErrFinished
	}
	if pb.paused != nil {
		close(pb.paused)
		pb.paused = nil
	}
	return nil
}

// OnFinished registers fn to run once when the playback ends.
// If it already ended, fn runs right away on a new goroutine.
func (pb *Playback) OnFinished(fn func()) {
	pb.mu.Lock()
	if !pb.finished {
		pb.callbacks = append(pb.callbacks, fn)
		pb.mu.Unlock()
		return
	}
	pb.mu.Unlock()
	go fn()
}

func (pb *Playback) finish(err error) {
	pb.cancel()

	pb.mu.Lock()
	pb.finished = true
	callbacks := pb.callbacks
	pb.callbacks = nil
	if pb.paused != nil {
		close(pb.paused)
		pb.paused = nil
	}
	pb.mu.Unlock()

	if err != nil {
		zlog.Warn().Msgf("playback ended with error: %v", err)
	}
	for _, fn := range callbacks {
		runCallback(fn)
	}
}

func runCallback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("panic in playback finish callback: %v", r)
		}
	}()
	fn()
}

func (pb *Playback) waitIfPaused(ctx context.Context) error {
	pb.mu.Lock()
	ch := pb.paused
	pb.mu.Unlock()
	if ch == nil {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stream reads PCM frames from r, encodes them and sends them to out.
// A trailing partial frame is padded with silence.
func (pb *Playback) stream(ctx context.Context, r io.Reader, enc FrameEncoder, out chan<- []byte) error {
	raw := make([]byte, frameBytes)
	pcm := make([]int16, FrameSize*Channels)

	for {
		if err := pb.waitIfPaused(ctx); err != nil {
			return nil
		}

		n, err := io.ReadFull(r, raw)
		if err == io.EOF {
			return nil
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to read pcm")
		}
		for i := n; i < len(raw); i++ {
			raw[i] = 0
		}

		for i := range pcm {
			pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}

		frame, encErr := enc.Encode(pcm, FrameSize, maxOpusBytes)
		if encErr != nil {
			return errors.Wrap(encErr, "failed to encode opus frame")
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return nil
		}

		if err == io.ErrUnexpectedEOF {
			return nil
		}
	}
}
