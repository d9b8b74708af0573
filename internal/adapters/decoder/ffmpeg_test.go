package decoder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/jukebox/internal/domain"
)

type fakeSink struct {
	mu      sync.Mutex
	samples []media.Sample
}

func (s *fakeSink) WriteSample(_ domain.RoomID, sample media.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// oggStream builds an Ogg/Opus stream with n single-packet pages of 20ms.
func oggStream(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, opusSampleRate, 2)
	require.NoError(t, err)
	for i := range n {
		err := w.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Timestamp: uint32(i * 960)},
			Payload: []byte{0xfc, byte(i)},
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func startHandle(data []byte, sink SampleSink, wait func() error) (*handle, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(ctx, cancel, "room", sink, defaultPageDuration)
	done := make(chan error, 1)
	go h.run(bytes.NewReader(data), wait, func(err error) { done <- err })
	return h, done
}

func noWait() error { return nil }

func TestHandle_PacesPagesAndCompletes(t *testing.T) {
	data := oggStream(t, 5)
	synctest.Test(t, func(t *testing.T) {
		sink := &fakeSink{}
		start := time.Now()
		_, done := startHandle(data, sink, noWait)

		require.NoError(t, <-done)
		assert.Equal(t, 100*time.Millisecond, time.Since(start))
		require.Len(t, sink.samples, 5)
		for i, s := range sink.samples {
			assert.Equal(t, []byte{0xfc, byte(i)}, s.Data)
		}
		assert.Equal(t, 20*time.Millisecond, sink.samples[2].Duration)
	})
}

func TestHandle_PauseHoldsAudio(t *testing.T) {
	data := oggStream(t, 10)
	synctest.Test(t, func(t *testing.T) {
		sink := &fakeSink{}
		h, done := startHandle(data, sink, noWait)

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, h.Pause())
		time.Sleep(time.Second)
		synctest.Wait()
		// the page already waiting for its tick still goes out
		assert.Equal(t, 3, sink.count())

		require.NoError(t, h.Resume())
		require.NoError(t, <-done)
		assert.Equal(t, 10, sink.count())
	})
}

func TestHandle_StopIsSynchronous(t *testing.T) {
	data := oggStream(t, 10)
	synctest.Test(t, func(t *testing.T) {
		sink := &fakeSink{}
		h, done := startHandle(data, sink, noWait)

		time.Sleep(30 * time.Millisecond)
		require.NoError(t, h.Stop())
		n := sink.count()
		assert.Equal(t, 1, n)

		assert.NoError(t, <-done, "a stopped decoder completes without error")
		time.Sleep(time.Second)
		assert.Equal(t, n, sink.count())
		assert.ErrorIs(t, h.Pause(), ErrStopped)
		assert.ErrorIs(t, h.Resume(), ErrStopped)
		assert.NoError(t, h.Stop())
	})
}

func TestHandle_StopWhilePaused(t *testing.T) {
	data := oggStream(t, 10)
	synctest.Test(t, func(t *testing.T) {
		h, done := startHandle(data, &fakeSink{}, noWait)
		require.NoError(t, h.Pause())
		time.Sleep(time.Second)

		require.NoError(t, h.Stop())
		assert.NoError(t, <-done)
	})
}

func TestHandle_Failures(t *testing.T) {
	t.Run("garbage output", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			_, done := startHandle([]byte("this is not ogg at all, not even close"), &fakeSink{}, noWait)
			assert.Error(t, <-done)
		})
	})

	t.Run("process exit error", func(t *testing.T) {
		data := oggStream(t, 2)
		synctest.Test(t, func(t *testing.T) {
			exit := errors.New("exit status 1")
			_, done := startHandle(data, &fakeSink{}, func() error { return exit })
			assert.ErrorIs(t, <-done, exit)
		})
	})
}

func TestFFmpeg_Args(t *testing.T) {
	f := New(Config{}, &fakeSink{})

	args := strings.Join(f.args("https://cdn.example/a", 90*time.Second+500*time.Millisecond), " ")
	assert.Contains(t, args, "-reconnect 1 -reconnect_streamed 1 -reconnect_delay_max 5")
	assert.Contains(t, args, "-ss 90.500 -i https://cdn.example/a")
	assert.Contains(t, args, "-c:a libopus -b:a 128k -ar 48000 -ac 2 -page_duration 20000 -f ogg pipe:1")

	args = strings.Join(f.args("/tmp/song.mp3", 0), " ")
	assert.NotContains(t, args, "-reconnect")
	assert.NotContains(t, args, "-ss")
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(8)
	_, _ = tb.Write([]byte("abcdef"))
	_, _ = tb.Write([]byte("ghij"))
	assert.Equal(t, "cdefghij", tb.String())
}
