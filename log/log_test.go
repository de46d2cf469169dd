package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOICE_ASSISTANT_LOG_PATH", "/tmp/va-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/va-env-log" {
		t.Errorf("got %q, want /tmp/va-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOICE_ASSISTANT_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("default dir is empty")
	}
	if !strings.Contains(got, "voice-assistant") {
		t.Errorf("default dir %q does not mention the app", got)
	}
}

func TestInitAndWrite(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Info("hello diagnostics")
	TranscriptionText("hello transcription")
	Close()

	diag, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(diag), "hello diagnostics") {
		t.Errorf("diagnostics log missing entry: %s", diag)
	}

	trans, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(trans), "hello transcription") {
		t.Errorf("transcribe log missing entry: %s", trans)
	}
}

func TestWriteBeforeInitIsSafe(t *testing.T) {
	setupLogDir(t)
	Info("dropped")
	Warnf("dropped %d", 1)
	TranscriptionText("dropped")
}
