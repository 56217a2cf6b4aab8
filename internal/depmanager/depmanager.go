// Package depmanager locates or installs the external binaries the media
// engine needs: yt-dlp, ffmpeg and ffprobe.
package depmanager

import (
	"archive/tar"
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"ytbatch/internal/errs"

	"github.com/cenkalti/backoff/v5"
	"github.com/ulikunitz/xz"
)

// BinaryName is the name of a binary dependency without platform suffix.
type BinaryName string

// Binary dependency names.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
)

const (
	platformWindows = "windows"

	downloadTimeout      = 10 * time.Minute
	downloadTries        = 3
	filePermExecutable   = 0o755
	sha256HexLength      = 64
	sha256SumsFieldCount = 2
)

// Platform represents the OS and architecture combination.
type Platform struct {
	OS   string
	Arch string
}

// String returns the platform string in format "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// filename appends .exe on Windows.
func (p Platform) filename(name BinaryName) string {
	if p.OS == platformWindows {
		return string(name) + ".exe"
	}

	return string(name)
}

// Sources are the download URLs for one platform.
type Sources struct {
	YTdlp string
	// YTdlpSums is a SHA2-256SUMS file used to verify the yt-dlp download. Optional.
	YTdlpSums string
	// FFmpeg is a .tar.xz or .zip archive containing ffmpeg and ffprobe.
	FFmpeg string
}

// Options configures a Manager.
type Options struct {
	BinsDir           string
	UseSystemBinaries bool
	// Sources overrides DefaultSources for the current platform.
	Sources *Sources
}

// Binaries are resolved absolute paths of the engine dependencies.
type Binaries struct {
	YTdlp   string
	FFmpeg  string
	FFprobe string
}

// FFmpegDir is the directory yt-dlp should search for ffmpeg and ffprobe.
func (b Binaries) FFmpegDir() string {
	if b.FFmpeg == "" {
		return ""
	}

	return filepath.Dir(b.FFmpeg)
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (b Binaries) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("yt-dlp", b.YTdlp),
		slog.String("ffmpeg", b.FFmpeg),
		slog.String("ffprobe", b.FFprobe),
	)
}

// Manager resolves binary dependencies once per process.
type Manager struct {
	log      *slog.Logger
	opt      Options
	platform Platform
	client   *http.Client
	lookPath func(file string) (string, error)
	// retry is the backoff between download attempts.
	retry func() backoff.BackOff
}

// New creates a new dependency manager.
func New(log *slog.Logger, opt Options) *Manager {
	return &Manager{
		log: log.With(slog.String("package", "depmanager")),
		opt: opt,
		platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		client:   &http.Client{Timeout: downloadTimeout},
		lookPath: exec.LookPath,
		retry: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = 10 * time.Second

			return bo
		},
	}
}

// Ensure returns usable paths for all binaries, downloading missing ones into
// BinsDir unless system binaries are requested. Any missing binary is an error
// wrapping errs.ErrBinaryNotFound.
func (m *Manager) Ensure(ctx context.Context) (Binaries, error) {
	var (
		bins Binaries
		err  error
	)

	if m.opt.UseSystemBinaries {
		bins, err = m.system()
	} else {
		bins, err = m.local(ctx)
	}

	if err != nil {
		return Binaries{}, err
	}

	m.log.InfoContext(ctx, "binaries ready", slog.Any("binaries", bins))

	return bins, nil
}

func (m *Manager) system() (Binaries, error) {
	var bins Binaries

	for name, dst := range m.targets(&bins) {
		p, err := m.lookPath(string(name))
		if err != nil {
			return Binaries{}, fmt.Errorf("%w: %s not in PATH: %w", errs.ErrBinaryNotFound, name, err)
		}

		*dst = p
	}

	return bins, nil
}

func (m *Manager) local(ctx context.Context) (Binaries, error) {
	bins := Binaries{
		YTdlp:   m.BinaryPath(BinaryYTdlp),
		FFmpeg:  m.BinaryPath(BinaryFFmpeg),
		FFprobe: m.BinaryPath(BinaryFFprobe),
	}

	haveYTdlp := exists(bins.YTdlp)
	haveFFmpeg := exists(bins.FFmpeg) && exists(bins.FFprobe)

	if haveYTdlp && haveFFmpeg {
		return bins, nil
	}

	src, err := m.sources()
	if err != nil {
		return Binaries{}, err
	}

	if err := os.MkdirAll(m.opt.BinsDir, filePermExecutable); err != nil {
		return Binaries{}, fmt.Errorf("%w: create bins directory: %w", errs.ErrBinaryNotFound, err)
	}

	if !haveYTdlp {
		if err := m.installYTdlp(ctx, src, bins.YTdlp); err != nil {
			return Binaries{}, fmt.Errorf("%w: install %s: %w", errs.ErrBinaryNotFound, BinaryYTdlp, err)
		}
	}

	if !haveFFmpeg {
		if err := m.installFFmpeg(ctx, src); err != nil {
			return Binaries{}, fmt.Errorf("%w: install %s: %w", errs.ErrBinaryNotFound, BinaryFFmpeg, err)
		}
	}

	return bins, nil
}

func (m *Manager) targets(bins *Binaries) map[BinaryName]*string {
	return map[BinaryName]*string{
		BinaryYTdlp:   &bins.YTdlp,
		BinaryFFmpeg:  &bins.FFmpeg,
		BinaryFFprobe: &bins.FFprobe,
	}
}

// BinaryPath returns where a binary lives inside BinsDir.
func (m *Manager) BinaryPath(name BinaryName) string {
	return filepath.Join(m.opt.BinsDir, m.platform.filename(name))
}

func (m *Manager) sources() (Sources, error) {
	if m.opt.Sources != nil {
		return *m.opt.Sources, nil
	}

	src, ok := DefaultSources[m.platform.String()]
	if !ok {
		return Sources{}, fmt.Errorf("%w: %w: %s, install yt-dlp and ffmpeg and enable system binaries",
			errs.ErrBinaryNotFound, errs.ErrUnsupportedPlatform, m.platform)
	}

	return src, nil
}

func (m *Manager) installYTdlp(ctx context.Context, src Sources, dst string) error {
	log := m.log.With(slog.String("binary", string(BinaryYTdlp)))
	log.InfoContext(ctx, "downloading binary", slog.String("url", src.YTdlp))

	tmp, err := m.downloadToTemp(ctx, src.YTdlp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if src.YTdlpSums != "" {
		if err := m.verify(ctx, tmp, path.Base(src.YTdlp), src.YTdlpSums); err != nil {
			return err
		}
	}

	if err := os.Chmod(tmp, filePermExecutable); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	log.InfoContext(ctx, "binary installed", slog.String("path", dst))

	return nil
}

func (m *Manager) installFFmpeg(ctx context.Context, src Sources) error {
	log := m.log.With(slog.String("binary", string(BinaryFFmpeg)))
	log.InfoContext(ctx, "downloading archive", slog.String("url", src.FFmpeg))

	tmp, err := m.downloadToTemp(ctx, src.FFmpeg)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	targets := map[string]struct{}{
		m.platform.filename(BinaryFFmpeg):  {},
		m.platform.filename(BinaryFFprobe): {},
	}

	switch {
	case strings.HasSuffix(src.FFmpeg, ".tar.xz"):
		err = extractFromTarXZ(tmp, m.opt.BinsDir, targets)
	case strings.HasSuffix(src.FFmpeg, ".zip"):
		err = extractFromZip(tmp, m.opt.BinsDir, targets)
	default:
		err = fmt.Errorf("unsupported archive format: %s", path.Base(src.FFmpeg))
	}

	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	log.InfoContext(ctx, "binaries installed", slog.String("dir", m.opt.BinsDir))

	return nil
}

// get performs a GET, retrying network errors, 429 and 5xx responses.
func (m *Manager) get(ctx context.Context, url string) (*http.Response, error) {
	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := m.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()

			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()

			return nil, backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
		}

		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(m.retry()),
		backoff.WithMaxTries(downloadTries),
		backoff.WithMaxElapsedTime(downloadTimeout),
	)
	if err != nil {
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			return nil, perr.Unwrap()
		}

		return nil, err
	}

	return resp, nil
}

func (m *Manager) downloadToTemp(ctx context.Context, url string) (string, error) {
	resp, err := m.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(m.opt.BinsDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())

		return "", fmt.Errorf("write file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())

		return "", fmt.Errorf("close temp file: %w", err)
	}

	return tmpFile.Name(), nil
}

// verify compares the SHA-256 of file with the entry for name in the sums file.
func (m *Manager) verify(ctx context.Context, file, name, sumsURL string) error {
	resp, err := m.get(ctx, sumsURL)
	if err != nil {
		return fmt.Errorf("fetch checksums: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err != nil {
		return fmt.Errorf("read checksums: %w", err)
	}

	want, ok := ParseSHASums(string(body))[name]
	if !ok {
		m.log.WarnContext(ctx, "no checksum published, skipping verification", slog.String("file", name))

		return nil
	}

	got, err := sha256File(file)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, want) {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", name, got, want)
	}

	return nil
}

// ParseSHASums parses lines in the "hash  filename" format. Malformed lines are ignored.
func ParseSHASums(content string) map[string]string {
	sums := make(map[string]string)

	for line := range strings.SplitSeq(content, "\n") {
		parts := strings.Fields(line)
		if len(parts) != sha256SumsFieldCount || len(parts[0]) != sha256HexLength {
			continue
		}

		sums[strings.TrimPrefix(parts[1], "*")] = parts[0]
	}

	return sums
}

func sha256File(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// exists checks if a binary file exists and has non-zero size.
func exists(name string) bool {
	info, err := os.Stat(name)

	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func extractFromTarXZ(archivePath, destDir string, targets map[string]struct{}) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open tar.xz: %w", err)
	}
	defer file.Close()

	xzReader, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("create xz reader: %w", err)
	}

	tarReader := tar.NewReader(xzReader)
	found := make(map[string]struct{}, len(targets))

	for len(found) < len(targets) {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Base(header.Name)
		if _, ok := targets[name]; !ok {
			continue
		}

		if err := writeExecutable(filepath.Join(destDir, name), tarReader); err != nil {
			return err
		}

		found[name] = struct{}{}
	}

	return missingTargets(targets, found)
}

func extractFromZip(archivePath, destDir string, targets map[string]struct{}) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	found := make(map[string]struct{}, len(targets))

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}

		name := path.Base(file.Name)
		if _, ok := targets[name]; !ok {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open file in zip: %w", err)
		}

		err = writeExecutable(filepath.Join(destDir, name), rc)
		rc.Close()

		if err != nil {
			return err
		}

		found[name] = struct{}{}
	}

	return missingTargets(targets, found)
}

func writeExecutable(dst string, r io.Reader) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create dest file: %w", err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()

		return fmt.Errorf("extract file: %w", err)
	}

	return out.Close()
}

func missingTargets(targets, found map[string]struct{}) error {
	var missing []string

	for name := range targets {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("archive is missing %s", strings.Join(missing, ", "))
	}

	return nil
}
