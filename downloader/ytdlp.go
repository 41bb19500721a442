// Package downloader turns queued jobs into completed downloads: it drains
// the priority queue, drives the external downloader subprocess and applies
// the bounded retry policy.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner invokes the external downloader for one video.
type Runner interface {
	Run(ctx context.Context, sourceURL, outputPath string) error
}

// YtDlp runs the yt-dlp binary, capped at 1080p, writing thumbnail and
// description sidecars next to the video file.
type YtDlp struct {
	Binary string
}

// Run executes yt-dlp. A non-zero exit surfaces the captured stderr, or the
// exit code when stderr is empty.
func (y YtDlp) Run(ctx context.Context, sourceURL, outputPath string) error {
	cmd := exec.CommandContext(ctx, y.Binary,
		sourceURL,
		"-f", "best[height<=1080]",
		"-o", outputPath,
		"--no-warnings",
		"--write-thumbnail",
		"--write-description",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("yt-dlp failed: %s", msg)
		}
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	return nil
}
