package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anthology-downloader/internal/config"
)

const fakePDF = "%PDF-1.4\n%fake\n"

func testConfig(slug bool) *config.Config {
	return &config.Config{
		Output: config.OutputConfig{SlugTitles: slug},
		HTTP: config.HttpConfig{
			UserAgent:      "anthology-downloader/test",
			TotalTimeoutMS: 5000,
		},
	}
}

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/pdf/A1.pdf":
			assert.Equal(t, "anthology-downloader/test", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte(fakePDF))
		case "/pdf/broken.pdf":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAndSave(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	dir := t.TempDir()

	f := NewFetcher(testConfig(true), nil)
	res, err := f.FetchAndSave(context.Background(), srv.URL+"/pdf/A1.pdf", "Example Paper", dir)
	require.NoError(t, err)

	assert.Equal(t, "A1", res.Identifier)
	assert.Equal(t, "A1-example-paper.pdf", res.FileName)
	assert.False(t, res.Skipped)
	assert.EqualValues(t, len(fakePDF), res.Bytes)

	data, err := os.ReadFile(filepath.Join(dir, "A1-example-paper.pdf"))
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(data))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestFetchAndSaveWithoutSlug(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	dir := t.TempDir()

	f := NewFetcher(testConfig(false), nil)
	res, err := f.FetchAndSave(context.Background(), srv.URL+"/pdf/A1.pdf", "Example Paper", dir)
	require.NoError(t, err)
	assert.Equal(t, "A1.pdf", res.FileName)
	assert.FileExists(t, filepath.Join(dir, "A1.pdf"))
}

func TestFetchAndSaveSkipsExisting(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	dir := t.TempDir()
	f := NewFetcher(testConfig(true), nil)

	for i := 0; i < 3; i++ {
		_, err := f.FetchAndSave(context.Background(), srv.URL+"/pdf/A1.pdf", "Example Paper", dir)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	res, err := f.FetchAndSave(context.Background(), srv.URL+"/pdf/A1.pdf", "Example Paper", dir)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestFetchAndSaveHTTPError(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	dir := t.TempDir()
	f := NewFetcher(testConfig(true), nil)

	res, err := f.FetchAndSave(context.Background(), srv.URL+"/pdf/broken.pdf", "Broken", dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)

	require.NotNil(t, res)
	assert.Equal(t, "broken", res.Identifier)
	assert.NoFileExists(t, res.Path)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".download-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFetchAndSaveNoIdentifier(t *testing.T) {
	f := NewFetcher(testConfig(true), nil)

	res, err := f.FetchAndSave(context.Background(), "https://example.com/", "Nothing", t.TempDir())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchAndSaveValidationFailure(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	dir := t.TempDir()

	f := NewFetcher(testConfig(true), nil)
	f.validate = func(string) error { return errors.New("xref table not found") }

	res, err := f.FetchAndSave(context.Background(), srv.URL+"/pdf/A1.pdf", "Example Paper", dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.NoFileExists(t, res.Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestFetchAndSaveValidatesWithPdfcpu(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	valid := minimalPDF()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pdf/good.pdf":
			_, _ = w.Write(valid)
		case "/pdf/html.pdf":
			_, _ = w.Write([]byte("<html><body>Not Found</body></html>"))
		case "/pdf/fake.pdf":
			_, _ = w.Write([]byte(fakePDF))
		}
	}))
	defer srv.Close()

	cfg := testConfig(true)
	cfg.HTTP.ValidatePDF = true
	f := NewFetcherWithClient(cfg, srv.Client(), nil)
	dir := t.TempDir()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"well formed pdf is kept", "good", false},
		{"html body is rejected", "html", true},
		{"header only is rejected", "fake", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.FetchAndSave(context.Background(), srv.URL+"/pdf/"+tt.id+".pdf", "Some Paper", dir)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrFetch)
				assert.NoFileExists(t, res.Path)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(res.Path)
			require.NoError(t, err)
			assert.Equal(t, valid, data)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "good-some-paper.pdf", entries[0].Name())

	configEntries, err := os.ReadDir(configHome)
	require.NoError(t, err)
	assert.Empty(t, configEntries)
}
