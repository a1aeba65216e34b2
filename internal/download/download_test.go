package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pkg.mon.icu/wumpus/internal/config"
	"pkg.mon.icu/wumpus/internal/storage"
	"pkg.mon.icu/wumpus/internal/storage/entity"
	"pkg.mon.icu/wumpus/internal/storage/storagetest"
)

func seed(t *testing.T, s *storage.Storage, base string) {
	t.Helper()
	ctx := context.Background()
	png, text := "image/png", "text/plain"
	author := entity.Snowflake(100)
	require.NoError(t, s.Begin(ctx, func(q entity.Querier) error {
		require.NoError(t, entity.UpsertGuild(ctx, q, &entity.Guild{ID: 1, Name: "guild"}))
		require.NoError(t, entity.UpsertChannel(ctx, q, &entity.Channel{ID: 10, GuildID: 1, Name: "general"}))
		require.NoError(t, entity.UpsertUser(ctx, q, &entity.User{ID: author, Username: "alice"}))
		require.NoError(t, entity.UpsertMessage(ctx, q, &entity.Message{ID: 1000, ChannelID: 10, AuthorID: &author, CreatedAt: entity.Now()}))
		return entity.UpsertAttachments(ctx, q, []*entity.Attachment{
			{ID: 5000, MessageID: 1000, Filename: "cat pic.png", ContentType: &png, URL: base + "/cat.png"},
			{ID: 5001, MessageID: 1000, Filename: "gone.jpg", URL: base + "/gone.jpg"},
			{ID: 5002, MessageID: 1000, Filename: "broken.gif", URL: base + "/broken.gif"},
			{ID: 5003, MessageID: 1000, Filename: "notes.txt", ContentType: &text, URL: base + "/notes.txt"},
		})
	}))
}

func find(t *testing.T, s *storage.Storage, id entity.Snowflake) *entity.Attachment {
	t.Helper()
	var a *entity.Attachment
	require.NoError(t, s.Begin(context.Background(), func(q entity.Querier) (err error) {
		a, err = entity.FindAttachment(context.Background(), q, id)
		return err
	}))
	require.NotNil(t, a)
	return a
}

func TestRun(t *testing.T) {
	var brokenHits, textHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cat.png":
			_, _ = w.Write([]byte("meow"))
		case "/broken.gif":
			brokenHits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		case "/notes.txt":
			textHits.Add(1)
			_, _ = w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := storagetest.New(t)
	seed(t, s, srv.URL)

	dir := t.TempDir()
	d := New(&config.Download{Dir: dir, Concurrency: 2, Timeout: 5 * time.Second}, zaptest.NewLogger(t), s)
	d.backoff = time.Millisecond

	res, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &Result{Downloaded: 1, Skipped: 1, Failed: 1}, res)
	assert.EqualValues(t, maxAttempts, brokenHits.Load())
	assert.Zero(t, textHits.Load())

	cat := find(t, s, 5000)
	assert.Equal(t, entity.DownloadDownloaded, cat.DownloadStatus)
	require.NotNil(t, cat.LocalPath)
	assert.Equal(t, "10/5000_cat_pic.png", *cat.LocalPath)
	content, err := os.ReadFile(filepath.Join(dir, "10", "5000_cat_pic.png"))
	require.NoError(t, err)
	assert.Equal(t, "meow", string(content))
	sum := sha256.Sum256([]byte("meow"))
	require.NotNil(t, cat.ContentHash)
	assert.Equal(t, hex.EncodeToString(sum[:]), *cat.ContentHash)

	assert.Equal(t, entity.DownloadSkipped, find(t, s, 5001).DownloadStatus)
	assert.Equal(t, entity.DownloadFailed, find(t, s, 5002).DownloadStatus)
	assert.Equal(t, entity.DownloadPending, find(t, s, 5003).DownloadStatus)

	res, err = d.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
}

func TestRunOtherGuild(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	s := storagetest.New(t)
	seed(t, s, srv.URL)

	d := New(&config.Download{Dir: t.TempDir(), Concurrency: 1, Timeout: time.Second}, zaptest.NewLogger(t), s)
	other := entity.Snowflake(2)
	res, err := d.Run(context.Background(), &other)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Equal(t, entity.DownloadPending, find(t, s, 5000).DownloadStatus)
}

func TestRunCancelled(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	s := storagetest.New(t)
	seed(t, s, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := New(&config.Download{Dir: t.TempDir(), Concurrency: 1, Timeout: time.Second}, zaptest.NewLogger(t), s)
	_, err := d.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, entity.DownloadPending, find(t, s, 5000).DownloadStatus)
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"cat.png":         "cat.png",
		"../etc/passwd":   "_etc_passwd",
		"héllo wörld.jpg": "h_llo_w_rld.jpg",
		"...":             "file",
		"":                "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitize(in), in)
	}
}
