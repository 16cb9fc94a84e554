// Package voice captures microphone audio and transcribes it via the
// OpenAI Whisper API. Capture runs in its own goroutine around an external
// recorder process; the stop path waits out a short grace period so the
// tail of the utterance lands in the buffer before transcription starts.
package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// CaptureRate is the PCM sample rate requested from the recorder process.
const CaptureRate = 16000

// stopGrace is how long Stop waits for in-flight samples after clearing
// the recording flag.
const stopGrace = 200 * time.Millisecond

// Result is one transcription outcome.
type Result struct {
	Text string
	Err  error
}

// TranscribeFunc turns captured samples into text.
type TranscribeFunc func(ctx context.Context, samples []float32, rate int) (string, error)

// Recorder captures audio samples while recording is on and hands finished
// clips to the transcriber. mu guards the sample buffer, the capture cancel
// func, and the recording generation; the recording flag is the start/stop
// signal. Each Start bumps gen, so a Stop grace goroutine still in flight
// when a new recording begins sees the mismatch and stands down instead of
// cancelling the new capture or stealing its buffer.
type Recorder struct {
	mu          sync.Mutex
	samples     []float32
	gen         int
	stopCapture context.CancelFunc

	recording  atomic.Bool
	transcribe TranscribeFunc
	results    chan Result

	// captureCommand is the external recorder invocation, emitting raw
	// signed 16-bit little-endian mono PCM at CaptureRate on stdout.
	// Overridable for tests.
	captureCommand []string
}

// NewRecorder builds a Recorder around the given transcriber.
func NewRecorder(transcribe TranscribeFunc) *Recorder {
	return &Recorder{
		transcribe: transcribe,
		results:    make(chan Result, 4),
		captureCommand: []string{
			"arecord", "-q", "-f", "S16_LE", "-r", fmt.Sprint(CaptureRate), "-c", "1", "-t", "raw", "-",
		},
	}
}

// Results returns the channel transcription outcomes arrive on.
func (r *Recorder) Results() <-chan Result { return r.results }

// Recording reports whether capture is active.
func (r *Recorder) Recording() bool { return r.recording.Load() }

// Start clears the sample buffer and begins capturing. Capture failures
// (no device, recorder binary missing) surface on the results channel and
// recording reverts.
func (r *Recorder) Start(ctx context.Context) error {
	if r.recording.Load() {
		return fmt.Errorf("already recording")
	}

	captureCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.samples = r.samples[:0]
	r.gen++
	gen := r.gen
	r.stopCapture = cancel
	r.mu.Unlock()
	r.recording.Store(true)

	go func() {
		if err := r.runCapture(captureCtx, gen); err != nil && r.currentGen() == gen && r.recording.Swap(false) {
			r.results <- Result{Err: err}
		}
	}()
	return nil
}

func (r *Recorder) currentGen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Stop ends capture and transcribes whatever was recorded. It returns
// immediately; the grace wait, copy-out, and API call all happen off the
// caller's loop and report through the results channel.
func (r *Recorder) Stop(ctx context.Context) {
	if !r.recording.Swap(false) {
		return
	}
	r.mu.Lock()
	gen := r.gen
	cancel := r.stopCapture
	r.mu.Unlock()

	go func() {
		time.Sleep(stopGrace)
		if cancel != nil {
			cancel()
		}

		r.mu.Lock()
		if gen != r.gen {
			// A newer recording owns the buffer now.
			r.mu.Unlock()
			return
		}
		samples := make([]float32, len(r.samples))
		copy(samples, r.samples)
		r.mu.Unlock()

		if len(samples) == 0 {
			r.results <- Result{Err: fmt.Errorf("no audio recorded")}
			return
		}

		text, err := r.transcribe(ctx, samples, CaptureRate)
		if err != nil {
			r.results <- Result{Err: err}
			return
		}
		r.results <- Result{Text: text}
	}()
}

// Cancel ends capture and discards the recorded samples.
func (r *Recorder) Cancel() {
	if !r.recording.Swap(false) {
		return
	}
	r.mu.Lock()
	gen := r.gen
	cancel := r.stopCapture
	r.mu.Unlock()

	go func() {
		time.Sleep(stopGrace / 2)
		if cancel != nil {
			cancel()
		}
		r.mu.Lock()
		if gen == r.gen {
			r.samples = r.samples[:0]
		}
		r.mu.Unlock()
	}()
}

// runCapture spawns the recorder process and appends decoded samples for as
// long as gen is still the live recording.
func (r *Recorder) runCapture(ctx context.Context, gen int) error {
	cmd := exec.CommandContext(ctx, r.captureCommand[0], r.captureCommand[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting audio capture: %w", err)
	}
	slog.Debug("audio capture started", "pid", cmd.Process.Pid)

	buf := make([]byte, 4096)
	var leftover []byte
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := append(leftover, buf[:n]...)
			pairs := len(chunk) / 2
			r.appendPCM(chunk[:pairs*2], gen)
			leftover = append(leftover[:0], chunk[pairs*2:]...)
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				_ = cmd.Wait()
				return fmt.Errorf("reading audio: %w", err)
			}
			break
		}
	}
	_ = cmd.Wait()
	return nil
}

func (r *Recorder) appendPCM(pcm []byte, gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		r.samples = append(r.samples, float32(sample)/32768.0)
	}
}
