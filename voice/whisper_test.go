package voice

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_Header(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	wav := EncodeWAV(samples, 16000)

	require.Len(t, wav, 44+len(samples)*2)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]), "sample rate")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]), "bit depth")
	assert.Equal(t, uint32(len(samples)*2), binary.LittleEndian.Uint32(wav[40:44]), "data length")

	// Full-scale samples clamp instead of wrapping.
	last := int16(binary.LittleEndian.Uint16(wav[44+8 : 44+10]))
	assert.Equal(t, int16(-32767), last)
}

func TestResample_Identity(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}
	out := Resample(samples, 16000, 16000)
	assert.Equal(t, samples, out)
}

func TestResample_Downsamples(t *testing.T) {
	samples := make([]float32, 48000)
	out := Resample(samples, 48000, 16000)
	assert.Len(t, out, 16000)
}

func TestTranscribe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "audio.wav", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world"}`))
	}))
	defer srv.Close()

	tr := NewTranscriber("en")
	tr.Endpoint = srv.URL
	tr.APIKey = "test-key"

	text, err := tr.Transcribe(context.Background(), []float32{0, 0.1, -0.1}, 16000)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestTranscribe_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	tr := NewTranscriber("en")
	tr.Endpoint = srv.URL
	tr.APIKey = "wrong"

	_, err := tr.Transcribe(context.Background(), []float32{0}, 16000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad key")
}

func TestTranscribe_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	tr := NewTranscriber("en")
	_, err := tr.Transcribe(context.Background(), []float32{0}, 16000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestTranscribe_ResamplesNonNativeRate(t *testing.T) {
	var gotLen int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		buf := make([]byte, 1<<20)
		n, _ := file.Read(buf)
		gotLen = int64(n)
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	tr := NewTranscriber("")
	tr.Endpoint = srv.URL
	tr.APIKey = "k"

	// One second at 48kHz should arrive as one second at 16kHz.
	samples := make([]float32, 48000)
	_, err := tr.Transcribe(context.Background(), samples, 48000)
	require.NoError(t, err)
	assert.Equal(t, int64(44+16000*2), gotLen)
}
