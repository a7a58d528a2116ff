package docs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agreement = "INVESTMENT AGREEMENT\n\nThe company issues equity tokens to the nominee.\n"

func newTestArchive(t *testing.T) (*Archive, string) {
	t.Helper()
	dir := t.TempDir()
	a, err := NewArchive(dir)
	require.NoError(t, err)
	return a, dir
}

// --- NewArchive ---

func TestNewArchive_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "docs")
	_, err := NewArchive(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewArchive_EmptyDir(t *testing.T) {
	_, err := NewArchive("")
	assert.ErrorIs(t, err, ErrInvalidBaseDir)
}

// --- URLs ---

func TestURLFor(t *testing.T) {
	sum := sha256.Sum256([]byte(agreement))
	assert.Equal(t, "sha256:"+hex.EncodeToString(sum[:]), URLFor([]byte(agreement)))
}

func TestParseURL(t *testing.T) {
	url := URLFor([]byte(agreement))
	sum, err := ParseURL(url)
	require.NoError(t, err)
	assert.Len(t, sum, sha256.Size)

	for _, bad := range []string{
		"",
		"ipfs:QmInvestmentAgreement",
		"sha256:zz",
		"sha256:" + strings.Repeat("ab", 31),
	} {
		_, err := ParseURL(bad)
		assert.ErrorIs(t, err, ErrInvalidURL, bad)
	}
}

// --- Put / Get ---

func TestPutGet(t *testing.T) {
	a, dir := newTestArchive(t)

	url, err := a.Put([]byte(agreement))
	require.NoError(t, err)
	assert.Equal(t, URLFor([]byte(agreement)), url)

	h := strings.TrimPrefix(url, Scheme)
	_, err = os.Stat(filepath.Join(dir, h[:2], h+".gz"))
	require.NoError(t, err)

	got, err := a.Get(url)
	require.NoError(t, err)
	assert.Equal(t, agreement, string(got))

	ok, err := a.Has(url)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPut_Idempotent(t *testing.T) {
	a, _ := newTestArchive(t)
	first, err := a.Put([]byte(agreement))
	require.NoError(t, err)
	second, err := a.Put([]byte(agreement))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	urls, err := a.List()
	require.NoError(t, err)
	assert.Len(t, urls, 1)
}

func TestPut_Rejections(t *testing.T) {
	a, _ := newTestArchive(t)

	_, err := a.Put(nil)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = a.Put(make([]byte, MaxDocumentSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestGet_Missing(t *testing.T) {
	a, _ := newTestArchive(t)

	_, err := a.Get(URLFor([]byte("never archived")))
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := a.Has(URLFor([]byte("never archived")))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.Get("ipfs:QmInvestmentAgreement")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestGet_DetectsTampering(t *testing.T) {
	a, dir := newTestArchive(t)
	url, err := a.Put([]byte(agreement))
	require.NoError(t, err)

	// Replace the archived file with a valid gzip stream of other text.
	forged, err := compress([]byte("FORGED AGREEMENT"))
	require.NoError(t, err)
	h := strings.TrimPrefix(url, Scheme)
	require.NoError(t, os.WriteFile(filepath.Join(dir, h[:2], h+".gz"), forged, 0600))

	_, err = a.Get(url)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(filepath.Join(dir, h[:2], h+".gz"), []byte("not gzip"), 0600))
	_, err = a.Get(url)
	assert.ErrorIs(t, err, ErrCorrupt)
}

// --- List ---

func TestList_SortedAndSkipsForeignFiles(t *testing.T) {
	a, dir := newTestArchive(t)

	var want []string
	for i := 0; i < 5; i++ {
		url, err := a.Put([]byte(fmt.Sprintf("document %d", i)))
		require.NoError(t, err)
		want = append(want, url)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "zz"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zz", "notes.txt"), []byte("x"), 0600))

	got, err := a.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)
	assert.IsIncreasing(t, got)
}

func TestList_Empty(t *testing.T) {
	a, _ := newTestArchive(t)
	urls, err := a.List()
	require.NoError(t, err)
	assert.Empty(t, urls)
}

// --- Concurrency ---

func TestConcurrentPutGet(t *testing.T) {
	a, _ := newTestArchive(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := []byte(fmt.Sprintf("document %d", i%4))
			url, err := a.Put(doc)
			assert.NoError(t, err)
			got, err := a.Get(url)
			assert.NoError(t, err)
			assert.Equal(t, doc, got)
		}(i)
	}
	wg.Wait()

	urls, err := a.List()
	require.NoError(t, err)
	assert.Len(t, urls, 4)
}
