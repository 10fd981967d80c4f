package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jo-hoe/mbtisong/internal/common"
	"github.com/jo-hoe/mbtisong/internal/util"
)

const (
	defaultDownloadTimeout = 60 * time.Second
	DefaultMaxAudioBytes   = 50 << 20
	audioExt               = ".mp3"
)

var (
	ErrInvalidID    = errors.New("invalid job id")
	ErrAudioMissing = errors.New("audio not stored")
	ErrTooLarge     = errors.New("audio exceeds size limit")
)

// AudioStore keeps downloaded tracks under baseDir/audio, one file per job.
type AudioStore struct {
	dir      string
	http     *http.Client
	maxBytes int64
}

// NewAudioStore stores to baseDir/audio. A nil client gets a 60s timeout.
func NewAudioStore(baseDir string, client *http.Client, maxBytes int64) *AudioStore {
	if client == nil {
		client = &http.Client{Timeout: defaultDownloadTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAudioBytes
	}
	return &AudioStore{dir: filepath.Join(baseDir, common.AudioDirName), http: client, maxBytes: maxBytes}
}

// Path is where the track for jobID lives.
func (s *AudioStore) Path(jobID string) (string, error) {
	if !util.IsID(jobID) {
		return "", ErrInvalidID
	}
	return filepath.Join(s.dir, jobID+audioExt), nil
}

// Fetch downloads url into the job's file and returns its path and size.
// The file is written to a temporary name first so readers never see a
// partial track.
func (s *AudioStore) Fetch(ctx context.Context, jobID, url string) (string, int64, error) {
	dst, err := s.Path(jobID)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("ensure audio dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create download request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download audio: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("download audio: unexpected status %d", resp.StatusCode)
	}

	tmp := filepath.Join(s.dir, "."+randomHex(8)+".part")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640) // #nosec G304 - generated name
	if err != nil {
		return "", 0, fmt.Errorf("create tmp file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", 0, fmt.Errorf("copy audio: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", 0, fmt.Errorf("store audio: %w", err)
	}
	return dst, n, nil
}

// Open returns the stored track and its size. The caller closes the file.
func (s *AudioStore) Open(jobID string) (*os.File, int64, error) {
	p, err := s.Path(jobID)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p) // #nosec G304 - path derived from validated id
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrAudioMissing
		}
		return nil, 0, fmt.Errorf("open audio: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat audio: %w", err)
	}
	return f, st.Size(), nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
