// Package ffprobe wraps the read-only media inspection tool.
package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Prober implements the MediaProber port by shelling out to ffprobe with
// JSON output.
type Prober struct {
	tool string
}

// NewProber builds a prober using the default inspection tool.
func NewProber() *Prober {
	return &Prober{tool: domain.ProbeToolName}
}

type probeOutput struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
		Channels  int    `json:"channels,omitempty"`
		Duration  string `json:"duration,omitempty"`
	} `json:"streams"`
	Format struct {
		Filename   string `json:"filename"`
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe analyzes a media file and returns its structured description.
func (p *Prober) Probe(ctx context.Context, path string) (domain.MediaInfo, error) {
	if path == "" {
		return domain.MediaInfo{}, fmt.Errorf("empty path")
	}

	cmd := exec.CommandContext(ctx, p.tool,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return domain.MediaInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}

	return parseProbeOutput(path, output)
}

func parseProbeOutput(path string, output []byte) (domain.MediaInfo, error) {
	var raw probeOutput
	if err := json.Unmarshal(output, &raw); err != nil {
		return domain.MediaInfo{}, fmt.Errorf("parse probe output for %s: %w", path, err)
	}

	info := domain.MediaInfo{
		Path:       path,
		FormatName: raw.Format.FormatName,
		BitRate:    raw.Format.BitRate,
	}
	if raw.Format.Duration != "" {
		if seconds, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
			info.DurationSeconds = seconds
		}
	}
	if raw.Format.Size != "" {
		if size, err := strconv.ParseInt(raw.Format.Size, 10, 64); err == nil {
			info.SizeBytes = size
		}
	}
	for _, s := range raw.Streams {
		info.Streams = append(info.Streams, domain.MediaStream{
			Index:     s.Index,
			CodecType: s.CodecType,
			CodecName: s.CodecName,
			Width:     s.Width,
			Height:    s.Height,
			Channels:  s.Channels,
			Duration:  s.Duration,
		})
	}
	return info, nil
}

var _ ports.MediaProber = (*Prober)(nil)
