package domain

import "fmt"

// MediaStream describes a single stream inside a container.
type MediaStream struct {
	Index     int
	CodecType string
	CodecName string
	Width     int
	Height    int
	Channels  int
	Duration  string
}

// MediaInfo is the structured description the inspection tool returns for a
// file. Read-only oracle data; never fed back to the tool unverified.
type MediaInfo struct {
	Path            string
	FormatName      string
	DurationSeconds float64
	SizeBytes       int64
	BitRate         string
	Streams         []MediaStream
}

// VideoStreams returns the video streams of the file.
func (m MediaInfo) VideoStreams() []MediaStream {
	var out []MediaStream
	for _, s := range m.Streams {
		if s.CodecType == "video" {
			out = append(out, s)
		}
	}
	return out
}

// AudioStreams returns the audio streams of the file.
func (m MediaInfo) AudioStreams() []MediaStream {
	var out []MediaStream
	for _, s := range m.Streams {
		if s.CodecType == "audio" {
			out = append(out, s)
		}
	}
	return out
}

// Summary renders a one-line description suitable for prompt context.
func (m MediaInfo) Summary() string {
	line := fmt.Sprintf("%s: format=%s duration=%.1fs", m.Path, m.FormatName, m.DurationSeconds)
	for _, v := range m.VideoStreams() {
		line += fmt.Sprintf(" video=%s %dx%d", v.CodecName, v.Width, v.Height)
	}
	for _, a := range m.AudioStreams() {
		line += fmt.Sprintf(" audio=%s %dch", a.CodecName, a.Channels)
	}
	return line
}

// RegistryFile is one entry in the external file registry.
type RegistryFile struct {
	ID       string            `json:"id"`
	Path     string            `json:"path"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
