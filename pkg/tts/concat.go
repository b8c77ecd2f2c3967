package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Concatenate joins mp3 files in order into outputPath using ffmpeg's
// concat demuxer. No audio-manipulation library exists anywhere in the
// dependency corpus (the source this is grounded on shells out to ffmpeg
// via pydub), so this shells out to the ffmpeg binary directly.
func Concatenate(ctx context.Context, ffmpegPath string, inputPaths []string, outputPath string, minBytes int64) error {
	valid := make([]string, 0, len(inputPaths))
	for _, p := range inputPaths {
		info, err := os.Stat(p)
		if err != nil || info.Size() <= minBytes {
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return fmt.Errorf("no valid audio segments to concatenate")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	listFile, err := os.CreateTemp("", "tts-concat-*.txt")
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer os.Remove(listFile.Name())

	for _, p := range valid {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if _, err := fmt.Fprintf(listFile, "file '%s'\n", escapeConcatPath(abs)); err != nil {
			listFile.Close()
			return fmt.Errorf("write concat list: %w", err)
		}
	}
	if err := listFile.Close(); err != nil {
		return fmt.Errorf("close concat list: %w", err)
	}

	bin := ffmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
		"-c:a", "libmp3lame",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w: %s", err, string(output))
	}

	return nil
}

func escapeConcatPath(p string) string {
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, p[i])
	}
	return string(out)
}
