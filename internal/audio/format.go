package audio

import (
	"strconv"
	"strings"
)

// Format is the decoded output format reported by the audio engine.
type Format struct {
	SampleRate int    `json:"sampleRate"` // Hz (44100, 96000, 2822400 for DSD64...)
	BitDepth   int    `json:"bitDepth"`
	Channels   int    `json:"channels"`
	Kind       string `json:"format"` // "PCM", "DSD64", "DSD128"...
}

// ParseFormat parses MPD's "samplerate:bits:channels" audio field.
// It returns nil for empty or unparsable input.
func ParseFormat(audio string) *Format {
	parts := strings.Split(audio, ":")
	if len(parts) < 2 {
		return nil
	}

	sampleRate, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil
	}

	// MPD reports "f" for float and "dsd" for native DSD samples.
	bitDepth, err := strconv.Atoi(parts[1])
	if err != nil {
		switch parts[1] {
		case "f":
			bitDepth = 32
		case "dsd":
			bitDepth = 1
		default:
			return nil
		}
	}

	channels := 2
	if len(parts) >= 3 {
		if ch, err := strconv.Atoi(parts[2]); err == nil {
			channels = ch
		}
	}

	return &Format{
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Channels:   channels,
		Kind:       formatKind(sampleRate),
	}
}

func formatKind(sampleRate int) string {
	switch sampleRate {
	case 2822400:
		return "DSD64"
	case 5644800:
		return "DSD128"
	case 11289600:
		return "DSD256"
	case 22579200:
		return "DSD512"
	default:
		return "PCM"
	}
}

// String renders the format for display, e.g. "96kHz 24-bit".
func (f *Format) String() string {
	if f == nil {
		return ""
	}
	if f.Kind != "PCM" {
		return f.Kind
	}
	return FormatSampleRate(f.SampleRate) + " " + FormatBitDepth(f.BitDepth)
}

// FormatSampleRate returns a human-readable sample rate string.
func FormatSampleRate(sampleRate int) string {
	if sampleRate >= 1000000 {
		return formatKind(sampleRate)
	}
	if sampleRate >= 1000 {
		return strconv.FormatFloat(float64(sampleRate)/1000, 'f', -1, 64) + "kHz"
	}
	return strconv.Itoa(sampleRate) + "Hz"
}

// FormatBitDepth returns a human-readable bit depth string.
func FormatBitDepth(bitDepth int) string {
	return strconv.Itoa(bitDepth) + "-bit"
}

func formatEqual(a, b *Format) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
