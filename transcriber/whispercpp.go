package transcriber

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/LivingInDrm/voice-assistant/model"
)

// WhisperCPP runs inference through the whisper.cpp CLI against model
// artifacts in the local cache. The binary is treated as an opaque backend.
type WhisperCPP struct {
	binaryPath string
	manager    *model.Manager
	tempDir    string

	mu        sync.Mutex
	modelPath string
}

var whisperLocations = []string{
	"/opt/homebrew/bin/whisper-cli",
	"/usr/local/bin/whisper-cli",
	"/usr/local/bin/whisper",
	"/usr/bin/whisper-cli",
	"/usr/bin/whisper",
}

func NewWhisperCPP(manager *model.Manager) (*WhisperCPP, error) {
	binaryPath := findWhisperBinary()
	if binaryPath == "" {
		return nil, fmt.Errorf("whisper-cli binary not found in PATH")
	}
	tempDir, err := os.MkdirTemp("", "voice-assistant-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	return &WhisperCPP{binaryPath: binaryPath, manager: manager, tempDir: tempDir}, nil
}

func findWhisperBinary() string {
	if path, err := exec.LookPath("whisper-cli"); err == nil {
		return path
	}
	if path, err := exec.LookPath("whisper"); err == nil {
		return path
	}
	for _, loc := range whisperLocations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func (w *WhisperCPP) Load(d model.Descriptor) error {
	path := w.manager.Path(d)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model file %s: %w", path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("model file %s is empty", path)
	}
	w.mu.Lock()
	w.modelPath = path
	w.mu.Unlock()
	return nil
}

func (w *WhisperCPP) Infer(samples []float32, sampleRate int, language string) (Output, error) {
	w.mu.Lock()
	modelPath := w.modelPath
	w.mu.Unlock()
	if modelPath == "" {
		return Output{}, fmt.Errorf("no model loaded")
	}

	wavPath := filepath.Join(w.tempDir, fmt.Sprintf("audio_%d.wav", time.Now().UnixNano()))
	if err := writeWAV(wavPath, samples, sampleRate); err != nil {
		return Output{}, fmt.Errorf("writing wav: %w", err)
	}
	defer os.Remove(wavPath)

	args := []string{
		"--model", modelPath,
		"--no-prints",
		"--no-timestamps",
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	args = append(args, wavPath)

	cmd := exec.Command(w.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return Output{}, fmt.Errorf("whisper-cli: %s", msg)
		}
		return Output{}, fmt.Errorf("whisper-cli: %w", err)
	}

	return Output{Text: stdout.String(), Language: language}, nil
}

func (w *WhisperCPP) Close() {
	os.RemoveAll(w.tempDir)
}

// writeWAV dumps float32 mono samples as a 16-bit PCM WAV file.
func writeWAV(path string, samples []float32, sampleRate int) error {
	const headerSize = 44
	dataSize := len(samples) * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(int16(v*32767)))
	}

	return os.WriteFile(path, buf, 0o644)
}
