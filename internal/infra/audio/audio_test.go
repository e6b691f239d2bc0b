package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEncoder emits the first sample of each frame as the payload.
type countingEncoder struct {
	frames int
	err    error
}

func (e *countingEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.frames++
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(pcm[0]))
	return out, nil
}

func pcmFrames(n int, extra int) []byte {
	buf := make([]byte, 0, n*frameBytes+extra)
	for i := 0; i < n; i++ {
		frame := make([]byte, frameBytes)
		binary.LittleEndian.PutUint16(frame, uint16(i+1))
		buf = append(buf, frame...)
	}
	return append(buf, make([]byte, extra)...)
}

func TestPlayback_Stream(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		wantFrames int
	}{
		{name: "whole frames", input: pcmFrames(3, 0), wantFrames: 3},
		{name: "partial trailing frame is padded", input: pcmFrames(2, 100), wantFrames: 3},
		{name: "empty input", input: nil, wantFrames: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			pb := newPlayback(cancel)
			out := make(chan []byte, 10)
			enc := &countingEncoder{}

			err := pb.stream(ctx, bytes.NewReader(tt.input), enc, out)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrames, enc.frames)
			assert.Len(t, out, tt.wantFrames)

			if tt.wantFrames > 0 {
				first := <-out
				assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(first))
			}
		})
	}
}

func TestPlayback_StreamEncodeError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pb := newPlayback(cancel)

	err := pb.stream(ctx, bytes.NewReader(pcmFrames(1, 0)), &countingEncoder{err: errors.New("bad")}, make(chan []byte, 1))
	assert.Error(t, err)
}

func TestPlayback_StopUnblocksSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pb := newPlayback(cancel)
	out := make(chan []byte) // never read

	errCh := make(chan error, 1)
	go func() {
		errCh <- pb.stream(ctx, bytes.NewReader(pcmFrames(5, 0)), &countingEncoder{}, out)
	}()

	require.NoError(t, pb.Stop())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestPlayback_PauseResume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pb := newPlayback(cancel)
	out := make(chan []byte, 10)

	require.NoError(t, pb.Pause())
	require.NoError(t, pb.Pause(), "pausing twice is harmless")

	errCh := make(chan error, 1)
	go func() {
		errCh <- pb.stream(ctx, bytes.NewReader(pcmFrames(2, 0)), &countingEncoder{}, out)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, out, 0, "no frames while paused")

	require.NoError(t, pb.Resume())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not resume")
	}
	assert.Len(t, out, 2)
}

func TestPlayback_FinishCallbacks(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	pb := newPlayback(cancel)

	var calls atomic.Int32
	pb.OnFinished(func() { calls.Add(1) })
	pb.OnFinished(func() { panic("boom") })

	pb.finish(nil)
	assert.Equal(t, int32(1), calls.Load())

	pb.mu.Lock()
	assert.True(t, pb.finished)
	pb.mu.Unlock()

	late := make(chan struct{})
	pb.OnFinished(func() { close(late) })
	select {
	case <-late:
	case <-time.After(2 * time.Second):
		t.Fatal("late callback did not run")
	}

	assert.True(t, errors.Is(pb.Pause(), ErrFinished))
	assert.True(t, errors.Is(pb.Resume(), ErrFinished))
}

func TestPlayback_FinishWithErrorRunsCallbacks(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	pb := newPlayback(cancel)

	var calls atomic.Int32
	pb.OnFinished(func() { calls.Add(1) })

	pb.finish(errors.New("ffmpeg exited"))
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, errors.Is(pb.Pause(), ErrFinished))
}

func TestNewPlayer_Defaults(t *testing.T) {
	p := NewPlayer(Config{})
	assert.Equal(t, "ffmpeg", p.ffmpegPath)
	assert.Equal(t, 64000, p.bitrate)

	p = NewPlayer(Config{FFmpegPath: "/usr/bin/ffmpeg", BitrateKbps: 96})
	assert.Equal(t, "/usr/bin/ffmpeg", p.ffmpegPath)
	assert.Equal(t, 96000, p.bitrate)
}
