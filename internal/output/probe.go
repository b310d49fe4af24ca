package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// VideoInfo describes the first video stream of a file
type VideoInfo struct {
	Codec  string `json:"codec"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Frames int    `json:"frames"`
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbReadFrames string `json:"nb_read_frames"`
	} `json:"streams"`
}

// Probe decodes path with ffprobe and counts its video frames.
// ffprobePath defaults to "ffprobe" in $PATH.
func Probe(ctx context.Context, ffprobePath, path string) (*VideoInfo, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=codec_name,width,height,nb_read_frames",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("failed to probe %s: %w: %s", path, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	return parseProbe(out)
}

func parseProbe(out []byte) (*VideoInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	s := probe.Streams[0]
	info := &VideoInfo{
		Codec:  s.CodecName,
		Width:  s.Width,
		Height: s.Height,
	}
	if s.NbReadFrames != "" {
		frames, err := strconv.Atoi(s.NbReadFrames)
		if err != nil {
			return nil, fmt.Errorf("invalid frame count %q: %w", s.NbReadFrames, err)
		}
		info.Frames = frames
	}
	return info, nil
}
