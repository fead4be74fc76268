package lipsync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/repositories"
)

const (
	defaultBinary      = "rhubarb"
	defaultExtractWait = 20 * time.Second
)

// RhubarbConfig holds configuration for the rhubarb lip-sync extractor.
// Optional fields with defaults:
// - Binary: path to the rhubarb executable (default: "rhubarb" on PATH)
// - Timeout: per-extraction deadline (default: 20s)
type RhubarbConfig struct {
	Binary  string
	Timeout time.Duration
}

// Rhubarb shells out to the rhubarb CLI to derive mouth-shape cues from a
// synthesized WAV clip. The phonetic recognizer is used because reply
// audio is synthetic and a language model adds nothing.
type Rhubarb struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

var _ repositories.LipSyncExtractor = (*Rhubarb)(nil)

// NewRhubarb creates a rhubarb-backed extractor.
func NewRhubarb(config RhubarbConfig, logger *zap.Logger) *Rhubarb {
	binary := config.Binary
	if binary == "" {
		binary = defaultBinary
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultExtractWait
	}
	return &Rhubarb{binary: binary, timeout: timeout, logger: logger}
}

// Extract runs rhubarb over the clip and returns its JSON cue document.
func (r *Rhubarb) Extract(ctx context.Context, wav []byte) (json.RawMessage, error) {
	dir, err := os.MkdirTemp("", "lipsync-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "reply.wav")
	outPath := filepath.Join(dir, "cues.json")
	if err := os.WriteFile(inPath, wav, 0o600); err != nil {
		return nil, fmt.Errorf("write clip: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary,
		"-f", "json",
		"-o", outPath,
		"-r", "phonetic",
		inPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		r.logger.Error("Lip-sync extraction failed",
			zap.Error(err),
			zap.ByteString("output", output))
		return nil, fmt.Errorf("rhubarb: %w", err)
	}

	cues, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read cue document: %w", err)
	}
	if !json.Valid(cues) {
		return nil, fmt.Errorf("rhubarb produced invalid JSON")
	}

	r.logger.Debug("Lip-sync extraction completed", zap.Int("bytes", len(cues)))
	return json.RawMessage(cues), nil
}
