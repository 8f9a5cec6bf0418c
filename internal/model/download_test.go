package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestPinnedManifestDefaultRepo(t *testing.T) {
	m, err := PinnedManifest("kyutai/pocket-tts-without-voice-cloning")
	if err != nil {
		t.Fatalf("manifest error: %v", err)
	}
	if len(m.Files) != 1 {
		t.Fatalf("expected one file, got %d", len(m.Files))
	}
	if m.Files[0].Filename != DefaultFilename || m.Files[0].Revision == "" || !isSHA256Hex(m.Files[0].SHA256) {
		t.Fatalf("unexpected pinned file: %+v", m.Files[0])
	}
}

func TestPinnedManifestUnknownRepo(t *testing.T) {
	if _, err := PinnedManifest("someone/else"); err == nil {
		t.Fatal("expected error for repo without pinned manifest")
	}
}

func TestResolveManifest(t *testing.T) {
	pinned := ResolveManifest("kyutai/pocket-tts-without-voice-cloning", "", "")
	if pinned.Files[0].SHA256 == "" {
		t.Error("expected pinned checksum for known repo")
	}

	adhoc := ResolveManifest("google/some-model", "", "")
	if adhoc.Files[0].Filename != DefaultFilename || adhoc.Files[0].Revision != DefaultRevision || adhoc.Files[0].SHA256 != "" {
		t.Errorf("unexpected ad-hoc manifest: %+v", adhoc.Files[0])
	}

	override := ResolveManifest("kyutai/pocket-tts-without-voice-cloning", "spm.model", "v2")
	if override.Files[0].Filename != "spm.model" || override.Files[0].Revision != "v2" {
		t.Errorf("explicit file/revision ignored: %+v", override.Files[0])
	}
}

func TestNormalizeETag(t *testing.T) {
	got := normalizeETag(`W/"58aa704a88faad35f22c34ea1cb55c4c5629de8b8e035c6e4936e2673dc07617"`)
	want := "58aa704a88faad35f22c34ea1cb55c4c5629de8b8e035c6e4936e2673dc07617"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !isSHA256Hex(got) {
		t.Fatalf("expected valid sha256")
	}
}

func TestExistingMatches(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "x.bin")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ok, err := existingMatches(p, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	if err != nil {
		t.Fatalf("existingMatches error: %v", err)
	}
	if !ok {
		t.Fatal("expected checksum match")
	}

	ok, err = existingMatches(filepath.Join(tmp, "missing.bin"), "00")
	if err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v; want false, nil", ok, err)
	}
}

// hubStub serves payload for every resolve URL and advertises its sha256.
func hubStub(t *testing.T, payload []byte, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	sum := sha256.Sum256(payload)
	var gets atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/resolve/") {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("X-Linked-Etag", `"`+hex.EncodeToString(sum[:])+`"`)
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	return srv, &gets
}

func TestDownload_FetchesVerifiesAndSkips(t *testing.T) {
	payload := []byte("fake tokenizer bytes")
	srv, gets := hubStub(t, payload, http.StatusOK)
	out := t.TempDir()

	opts := DownloadOptions{
		Manifest: ResolveManifest("org/repo", "", ""),
		OutDir:   out,
		BaseURL:  srv.URL,
		Client:   srv.Client(),
	}

	paths, err := Download(context.Background(), opts)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(out, DefaultFilename) {
		t.Fatalf("paths = %v", paths)
	}

	got, err := os.ReadFile(paths[0])
	if err != nil || string(got) != string(payload) {
		t.Fatalf("downloaded content = %q, %v", got, err)
	}

	if _, err := os.Stat(filepath.Join(out, lockFilename)); err != nil {
		t.Fatalf("lock manifest missing: %v", err)
	}

	// Second run: checksum comes from the lock file and the local copy matches.
	if _, err := Download(context.Background(), opts); err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if n := gets.Load(); n != 1 {
		t.Errorf("GET count = %d, want 1", n)
	}
}

func TestDownload_ChecksumMismatch(t *testing.T) {
	srv, _ := hubStub(t, []byte("payload"), http.StatusOK)

	manifest := ResolveManifest("org/repo", "", "")
	manifest.Files[0].SHA256 = strings.Repeat("0", 64)

	_, err := Download(context.Background(), DownloadOptions{
		Manifest: manifest,
		OutDir:   t.TempDir(),
		BaseURL:  srv.URL,
		Client:   srv.Client(),
	})
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got: %v", err)
	}
}

func TestDownload_AccessDenied(t *testing.T) {
	srv, _ := hubStub(t, nil, http.StatusForbidden)

	_, err := Download(context.Background(), DownloadOptions{
		Manifest: ResolveManifest("org/gated", "", ""),
		OutDir:   t.TempDir(),
		BaseURL:  srv.URL,
		Client:   srv.Client(),
	})

	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AccessDeniedError, got: %v", err)
	}
	if denied.Repo != "org/gated" {
		t.Errorf("Repo = %q, want org/gated", denied.Repo)
	}
}

func TestDownload_RequiresRepoAndOutDir(t *testing.T) {
	if _, err := Download(context.Background(), DownloadOptions{OutDir: t.TempDir()}); err == nil {
		t.Error("expected error without repo")
	}
	if _, err := Download(context.Background(), DownloadOptions{Manifest: ResolveManifest("a/b", "", "")}); err == nil {
		t.Error("expected error without out dir")
	}
}
