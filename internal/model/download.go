package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const defaultBaseURL = "https://huggingface.co"

type DownloadOptions struct {
	Manifest Manifest
	OutDir   string
	HFToken  string
	// BaseURL overrides the Hugging Face endpoint.
	BaseURL string
	Client  *http.Client
	Stdout  io.Writer
	Logger  *slog.Logger
}

// AccessDeniedError is returned when the hub rejects the request with 401 or
// 403, typically for gated repositories without a token.
type AccessDeniedError struct {
	Repo string
	Msg  string
}

func (e *AccessDeniedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("access denied for %s", e.Repo)
}

type lockManifest struct {
	Repo      string                `json:"repo"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

const lockFilename = "download-manifest.lock.json"

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// Download fetches every file of opts.Manifest into opts.OutDir, verifying
// sha256 checksums and recording them in a lock manifest. Files whose local
// checksum already matches are skipped. It returns the local paths.
func Download(ctx context.Context, opts DownloadOptions) ([]string, error) {
	manifest := opts.Manifest
	if manifest.Repo == "" {
		return nil, fmt.Errorf("repo is required")
	}
	if len(manifest.Files) == 0 {
		return nil, fmt.Errorf("manifest for %s lists no files", manifest.Repo)
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("out dir is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, lockFilename)
	lock := readLockManifest(lockPath)
	lock.Repo = manifest.Repo
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	d := downloader{opts: opts, repo: manifest.Repo}
	paths := make([]string, 0, len(manifest.Files))

	for _, f := range manifest.Files {
		expected := strings.ToLower(f.SHA256)
		if expected == "" {
			if lr, ok := lock.Files[f.Filename]; ok && lr.Revision == f.Revision && isSHA256Hex(lr.SHA256) {
				expected = strings.ToLower(lr.SHA256)
			} else {
				var err error
				expected, err = d.resolveChecksum(ctx, f)
				if err != nil {
					return nil, err
				}
			}
		}

		localPath := filepath.Join(opts.OutDir, filepath.FromSlash(f.Filename))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("create local subdir: %w", err)
		}

		ok, err := existingMatches(localPath, expected)
		if err != nil {
			return nil, err
		}

		if ok {
			fmt.Fprintf(opts.Stdout, "skip %s (checksum match)\n", f.Filename)
			lock.Files[f.Filename] = lockRecord{Revision: f.Revision, SHA256: expected}
			paths = append(paths, localPath)
			continue
		}

		fmt.Fprintf(opts.Stdout, "download %s@%s -> %s\n", f.Filename, f.Revision, localPath)
		start := time.Now()

		actual, err := d.fetch(ctx, f, localPath)
		if err != nil {
			return nil, err
		}

		if actual != expected {
			_ = os.Remove(localPath)
			return nil, fmt.Errorf("checksum mismatch for %s: expected %s got %s", f.Filename, expected, actual)
		}

		opts.Logger.Info("model file verified",
			slog.String("repo", manifest.Repo),
			slog.String("file", f.Filename),
			slog.String("sha256", actual),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		fmt.Fprintf(opts.Stdout, "verified %s (sha256=%s)\n", f.Filename, actual)
		lock.Files[f.Filename] = lockRecord{Revision: f.Revision, SHA256: expected}
		paths = append(paths, localPath)
	}

	if err := writeLockManifest(lockPath, lock); err != nil {
		return nil, err
	}
	fmt.Fprintf(opts.Stdout, "wrote lock manifest: %s\n", lockPath)

	return paths, nil
}

type downloader struct {
	opts DownloadOptions
	repo string
}

func (d downloader) fetch(ctx context.Context, file ModelFile, outPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.resolveURL(file), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	setAuth(req, d.opts.HFToken)

	resp, err := d.opts.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := d.checkStatus(resp, file, 299); err != nil {
		return "", err
	}

	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(fh, h), resp.Body); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("download read failed: %w", err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// resolveChecksum reads the sha256 the hub advertises for an LFS file.
func (d downloader) resolveChecksum(ctx context.Context, f ModelFile) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.resolveURL(f), nil)
	if err != nil {
		return "", fmt.Errorf("build metadata request: %w", err)
	}
	setAuth(req, d.opts.HFToken)

	// Redirects would drop the X-Linked-Etag header of the first response.
	client := *d.opts.Client
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata request failed for %s: %w", f.Filename, err)
	}
	defer resp.Body.Close()

	if err := d.checkStatus(resp, f, 399); err != nil {
		return "", err
	}

	for _, key := range []string{"X-Linked-Etag", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); isSHA256Hex(v) {
			return strings.ToLower(v), nil
		}
	}

	return "", fmt.Errorf("unable to resolve sha256 metadata for %s; provide pinned checksum", f.Filename)
}

func (d downloader) checkStatus(resp *http.Response, f ModelFile, maxOK int) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AccessDeniedError{
			Repo: d.repo,
			Msg:  fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", d.repo),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > maxOK {
		return fmt.Errorf("request for %s failed: %s", f.Filename, resp.Status)
	}
	return nil
}

func (d downloader) resolveURL(file ModelFile) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", strings.TrimRight(d.opts.BaseURL, "/"), d.repo, file.Revision, file.Filename)
}

func setAuth(req *http.Request, token string) {
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(path string) lockManifest {
	out := lockManifest{Files: map[string]lockRecord{}}

	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil || out.Files == nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}
	return nil
}
