package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const ffmpegTimeout = 30 * time.Second

// FFmpegTranscoder shells out to ffmpeg to convert webm/ogg/mp3 uploads to
// canonical WAV. The declared MIME type only selects the input format hint;
// it is never trusted for WAV detection.
type FFmpegTranscoder struct {
	binary string
}

func NewFFmpegTranscoder(binary string) (*FFmpegTranscoder, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &FFmpegTranscoder{binary: path}, nil
}

func (t *FFmpegTranscoder) ToWAV(data []byte, declaredMIME string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ffmpegTimeout)
	defer cancel()

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	if hint := formatHint(declaredMIME); hint != "" {
		args = append(args, "-f", hint)
	}
	args = append(args,
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", "16000",
		"-sample_fmt", "s16",
		"-f", "wav",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdin = bytes.NewReader(data)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return nil, fmt.Errorf("ffmpeg transcode: %w (%s)", err, detail)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg transcode: empty output")
	}
	return out.Bytes(), nil
}

func formatHint(declaredMIME string) string {
	mime := strings.ToLower(strings.TrimSpace(declaredMIME))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/ogg", "application/ogg":
		return "ogg"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "mp4"
	default:
		// Let ffmpeg probe the container itself.
		return ""
	}
}
