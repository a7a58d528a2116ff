// Package docs archives offering documents (terms, investment agreement) by
// content hash. A document's URL is "sha256:" followed by the hex digest of
// its bytes, so the URL signed by the company and nominee pins the exact text.
package docs

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Scheme prefixes every document URL.
const Scheme = "sha256:"

// MaxDocumentSize bounds an archived document, before compression.
const MaxDocumentSize = 16 << 20

// Archive stores gzip-compressed documents under
// {baseDir}/{hash[:2]}/{hash}.gz.
type Archive struct {
	baseDir string
	mu      sync.RWMutex
}

// NewArchive opens an archive rooted at baseDir, creating it if needed.
func NewArchive(baseDir string) (*Archive, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// URLFor returns the document URL of data without archiving it.
func URLFor(data []byte) string {
	sum := sha256.Sum256(data)
	return Scheme + hex.EncodeToString(sum[:])
}

// ParseURL returns the digest named by a document URL.
func ParseURL(url string) ([]byte, error) {
	h, ok := strings.CutPrefix(url, Scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}
	sum, err := hex.DecodeString(h)
	if err != nil || len(sum) != sha256.Size {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}
	return sum, nil
}

func (a *Archive) path(sum []byte) string {
	h := hex.EncodeToString(sum)
	return filepath.Join(a.baseDir, h[:2], h+".gz")
}

// Put archives data and returns its URL. Archiving the same bytes twice is a
// no-op.
func (a *Archive) Put(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	if len(data) > MaxDocumentSize {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	sum := sha256.Sum256(data)
	url := Scheme + hex.EncodeToString(sum[:])

	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.path(sum[:])
	if _, err := os.Stat(p); err == nil {
		return url, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	z, err := compress(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, z, 0600); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return url, nil
}

// Get returns the document archived under url, verifying its hash.
func (a *Archive) Get(url string) ([]byte, error) {
	sum, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	z, err := os.ReadFile(a.path(sum))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	data, err := decompress(z)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, url, err)
	}
	if got := sha256.Sum256(data); !bytes.Equal(got[:], sum) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, url)
	}
	return data, nil
}

// Has reports whether url is archived.
func (a *Archive) Has(url string) (bool, error) {
	sum, err := ParseURL(url)
	if err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, err := os.Stat(a.path(sum)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// List returns the URLs of every archived document, sorted.
func (a *Archive) List() ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	shards, err := os.ReadDir(a.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	var urls []string
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(a.baseDir, shard.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			h, ok := strings.CutSuffix(f.Name(), ".gz")
			if !ok || f.IsDir() {
				continue
			}
			if sum, err := hex.DecodeString(h); err != nil || len(sum) != sha256.Size {
				continue
			}
			urls = append(urls, Scheme+h)
		}
	}
	sort.Strings(urls)
	return urls, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxDocumentSize {
		return nil, ErrTooLarge
	}
	return out, nil
}
