package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LivingInDrm/voice-assistant/audio"
)

// DumpSession writes a finished recording to dir as a timestamped FLAC file
// and returns its path. Used for debugging capture problems; failures here
// never affect the pipeline.
func DumpSession(dir string, sess audio.Session) (string, error) {
	if sess.Empty() {
		return "", fmt.Errorf("empty session")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	enc, err := NewFlac()
	if err != nil {
		return "", err
	}

	block := make([]int16, 0, BlockSize)
	for _, s := range sess.Samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		block = append(block, int16(v*32767))
		if len(block) == BlockSize {
			if err := enc.EncodeBlock(block); err != nil {
				return "", err
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		if err := enc.EncodeBlock(block); err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	stamp := sess.StartedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	path := filepath.Join(dir, stamp.Format("20060102-150405")+".flac")
	if err := os.WriteFile(path, enc.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}
