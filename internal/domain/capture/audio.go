package capture

import (
	"bytes"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/platform/errors"
)

// AudioInfo describes a captured recording well enough to log and validate
// it before transcription.
type AudioInfo struct {
	MIME       string
	Bytes      int
	SampleRate int
	Duration   time.Duration
}

// InspectAudio sanity-checks a recording. MP3 payloads are fully probed for
// sample rate and duration; other containers (webm/ogg from the browser
// recorder) only get the emptiness check since the transcriber accepts them
// as-is.
func InspectAudio(audio media.Asset) (AudioInfo, error) {
	const op = "capture:voice.inspect"

	if audio.Size() == 0 {
		return AudioInfo{}, errors.New(errors.KindVoice, op, "empty recording")
	}

	info := AudioInfo{MIME: audio.MIME, Bytes: audio.Size()}
	if audio.MIME != "audio/mpeg" && audio.MIME != "audio/mp3" {
		return info, nil
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(audio.Data))
	if err != nil {
		return AudioInfo{}, errors.Wrap(errors.KindVoice, op, "decode mp3", err)
	}

	info.SampleRate = decoder.SampleRate()
	// decoder length is PCM bytes: 2 channels x 2 bytes per sample
	samples := decoder.Length() / 4
	if decoder.SampleRate() > 0 {
		info.Duration = time.Duration(samples) * time.Second / time.Duration(decoder.SampleRate())
	}
	return info, nil
}
