package cli_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytbatch/internal/cli"
	"ytbatch/internal/errs"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, environ []string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := cli.NewRootCommand(cli.Options{
		Stdout:      &stdout,
		Stderr:      &stderr,
		Environ:     environ,
		Version:     "v1.2.3",
		DryRunDelay: time.Millisecond,
	})
	root.SetArgs(args)

	err := root.ExecuteContext(t.Context())

	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sessions.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	return path
}

const sessions = `Title,YouTube URL
Keynote,https://www.youtube.com/watch?v=abcdefghijk
Break,
Opening,youtu.be/bcdefghijkl
Lunch,https://example.com/menu
Closing,https://youtu.be/cdefghijklm
`

func TestVersion(t *testing.T) {
	t.Parallel()

	res := run(t, nil, "version")
	if res.err != nil {
		t.Fatalf("version failed: %v", res.err)
	}

	if res.stdout != "ytbatch v1.2.3\n" {
		t.Errorf("got %q, want %q", res.stdout, "ytbatch v1.2.3\n")
	}
}

func TestBatchDryRun(t *testing.T) {
	t.Parallel()

	input := writeCSV(t, sessions)
	out := filepath.Join(t.TempDir(), "out")
	logFile := filepath.Join(t.TempDir(), "logs", "run.log")

	res := run(t, nil, "batch", "--dry-run", "-i", input, "-o", out, "--log-file", logFile, "-w", "2")
	if res.err != nil {
		t.Fatalf("batch failed: %v\n%s", res.err, res.stderr)
	}

	if want := "total: 4, completed: 3, failed: 1\n"; res.stdout != want {
		t.Errorf("got stdout %q, want %q", res.stdout, want)
	}

	if _, err := os.Stat(out); err != nil {
		t.Errorf("output dir not created: %v", err)
	}

	logged, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	for _, want := range []string{`"msg":"batch finished"`, `"msg":"item failed"`, `"row":4`} {
		if !bytes.Contains(logged, []byte(want)) {
			t.Errorf("log file does not contain %s", want)
		}
	}

	// audio is the default mode
	if !strings.Contains(res.stderr, "abcdefghijk.mp3") {
		t.Errorf("stderr does not mention the audio output path:\n%s", res.stderr)
	}
}

func TestVideosPresetCanBeOverridden(t *testing.T) {
	t.Parallel()

	input := writeCSV(t, sessions)
	out := filepath.Join(t.TempDir(), "videos")

	res := run(t, nil, "videos", "--dry-run", "-i", input, "-o", out, "--limit", "2")
	if res.err != nil {
		t.Fatalf("videos failed: %v\n%s", res.err, res.stderr)
	}

	if want := "total: 2, completed: 2, failed: 0\n"; res.stdout != want {
		t.Errorf("got stdout %q, want %q", res.stdout, want)
	}

	for _, want := range []string{"settings.mode=video", "settings.workers=4", "settings.resolution=720p", "abcdefghijk.mp4"} {
		if !strings.Contains(res.stderr, want) {
			t.Errorf("stderr does not contain %q", want)
		}
	}
}

func TestBatchReadsEnvironment(t *testing.T) {
	t.Parallel()

	input := writeCSV(t, "Link\nhttps://youtu.be/abcdefghijk\n")
	environ := []string{
		"YTBATCH_URL_COLUMN=Link",
		"YTBATCH_OUTPUT_DIR=" + filepath.Join(t.TempDir(), "env-out"),
		"HOME=/root",
	}

	res := run(t, environ, "batch", "--dry-run", "-i", input)
	if res.err != nil {
		t.Fatalf("batch failed: %v\n%s", res.err, res.stderr)
	}

	if want := "total: 1, completed: 1, failed: 0\n"; res.stdout != want {
		t.Errorf("got stdout %q, want %q", res.stdout, want)
	}
}

func TestBatchStartupErrors(t *testing.T) {
	t.Parallel()

	input := writeCSV(t, sessions)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "missing column", args: []string{"-i", input, "-c", "Link"}, want: errs.ErrColumnNotFound},
		{name: "missing input", args: []string{"-i", filepath.Join(t.TempDir(), "none.xlsx")}, want: errs.ErrSource},
		{name: "bad mode", args: []string{"-i", input, "--mode", "gif"}, want: errs.ErrInvalidMode},
		{name: "zero retries", args: []string{"-i", input, "--max-retries", "0"}, want: errs.ErrInvalidSetting},
		{name: "missing config file", args: []string{"-i", input, "--config", filepath.Join(t.TempDir(), "none.json")}, want: errs.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"batch", "--dry-run", "-o", t.TempDir()}, tt.args...)

			res := run(t, nil, args...)
			if !errors.Is(res.err, tt.want) {
				t.Errorf("got error %v, want %v", res.err, tt.want)
			}

			if res.stdout != "" {
				t.Errorf("got stdout %q, want nothing", res.stdout)
			}
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantErr  error
		wantPath string
	}{
		{name: "video by default", args: []string{"youtu.be/abcdefghijk"}, wantPath: "abcdefghijk.mp4"},
		{name: "audio only", args: []string{"-a", "https://www.youtube.com/watch?v=abcdefghijk"}, wantPath: "abcdefghijk.mp3"},
		{name: "invalid url", args: []string{"https://example.com/watch"}, wantErr: errs.ErrDownloadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"get", "--dry-run", "-o", t.TempDir()}, tt.args...)

			res := run(t, nil, args...)
			if !errors.Is(res.err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", res.err, tt.wantErr)
			}

			if tt.wantPath != "" && !strings.Contains(res.stderr, tt.wantPath) {
				t.Errorf("stderr does not contain %q:\n%s", tt.wantPath, res.stderr)
			}
		})
	}
}

func TestGetRequiresURL(t *testing.T) {
	t.Parallel()

	if res := run(t, nil, "get"); res.err == nil {
		t.Fatal("get without a url succeeded")
	}
}

func TestGetAudioOnlyOverridesConfigAndEnvironment(t *testing.T) {
	t.Parallel()

	cfg := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(cfg, []byte(`{"mode": "video"}`), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	tests := []struct {
		name    string
		environ []string
		args    []string
	}{
		{name: "config file", args: []string{"--config", cfg}},
		{name: "environment", environ: []string{"YTBATCH_MODE=video"}},
		{name: "both", environ: []string{"YTBATCH_MODE=video"}, args: []string{"--config", cfg}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"get", "--dry-run", "-o", t.TempDir(), "-a"}, tt.args...)
			args = append(args, "https://www.youtube.com/watch?v=abcdefghijk")

			res := run(t, tt.environ, args...)
			if res.err != nil {
				t.Fatalf("get failed: %v\n%s", res.err, res.stderr)
			}

			for _, want := range []string{"settings.mode=audio", "abcdefghijk.mp3"} {
				if !strings.Contains(res.stderr, want) {
					t.Errorf("stderr does not contain %q:\n%s", want, res.stderr)
				}
			}
		})
	}
}

func TestBatchReadsInputBeforeInstallingBinaries(t *testing.T) {
	t.Parallel()

	bins := filepath.Join(t.TempDir(), "bins")

	res := run(t, nil, "batch",
		"-i", filepath.Join(t.TempDir(), "missing.csv"),
		"-o", t.TempDir(),
		"--system-binaries=false",
		"--bins-dir", bins)
	if !errors.Is(res.err, errs.ErrSource) {
		t.Fatalf("got error %v, want %v", res.err, errs.ErrSource)
	}

	if _, err := os.Stat(bins); !os.IsNotExist(err) {
		t.Errorf("bins dir %q was touched before the input was read: %v", bins, err)
	}

	if strings.Contains(res.stderr, "checking yt-dlp and ffmpeg") {
		t.Error("binaries were checked before the input was read")
	}
}
