package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

// DefaultEndpoint is the OpenAI Whisper transcription endpoint.
const DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// whisperRate is the sample rate Whisper expects.
const whisperRate = 16000

// Transcriber calls the Whisper API. The zero-ish value from NewTranscriber
// reads the API key from OPENAI_API_KEY at call time.
type Transcriber struct {
	Endpoint string
	Language string
	Client   *http.Client
	// APIKey overrides the environment lookup, for tests.
	APIKey string
}

// NewTranscriber returns a Transcriber for the given language hint.
func NewTranscriber(language string) *Transcriber {
	return &Transcriber{
		Endpoint: DefaultEndpoint,
		Language: language,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Transcribe resamples to 16kHz, encodes a WAV clip, and posts it to the
// Whisper API, returning the transcript text.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, rate int) (string, error) {
	key := t.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	if rate != whisperRate {
		samples = Resample(samples, rate, whisperRate)
	}
	wav := EncodeWAV(samples, whisperRate)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	if err := form.WriteField("model", "whisper-1"); err != nil {
		return "", err
	}
	if t.Language != "" {
		if err := form.WriteField("language", t.Language); err != nil {
			return "", err
		}
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("whisper API error (%d): %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding whisper response: %w", err)
	}
	return parsed.Text, nil
}

// Resample converts samples between rates by linear interpolation. Good
// enough for speech headed into an STT model.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(from) / float64(to)
	n := int(float64(len(samples)) / ratio)
	out := make([]float32, 0, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		var sample float32
		switch {
		case idx+1 < len(samples):
			sample = samples[idx]*(1-frac) + samples[idx+1]*frac
		case idx < len(samples):
			sample = samples[idx]
		}
		out = append(out, sample)
	}
	return out
}

// EncodeWAV renders float samples as a 16-bit mono PCM WAV clip.
func EncodeWAV(samples []float32, rate int) []byte {
	dataLen := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(rate))
	binary.Write(buf, binary.LittleEndian, uint32(rate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))      // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))     // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		binary.Write(buf, binary.LittleEndian, int16(s*32767))
	}
	return buf.Bytes()
}
