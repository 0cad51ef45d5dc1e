package avatar

import (
	"bytes"
	"context"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/anoixa/engi-tracker/storage"
	"github.com/anoixa/engi-tracker/storage/storagetest"
)

const testBaseURL = "https://avatars-bucket.s3.ap-northeast-1.amazonaws.com"

type fakeIdentity struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeIdentity) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return f.err
}

func (f *fakeIdentity) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type orphanEntry struct {
	KeyOrPrefix string
	IsPrefix    bool
	Reason      string
}

type fakeOrphans struct {
	mu      sync.Mutex
	entries []orphanEntry
}

func (f *fakeOrphans) Record(_ context.Context, keyOrPrefix string, isPrefix bool, reason string, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, orphanEntry{KeyOrPrefix: keyOrPrefix, IsPrefix: isPrefix, Reason: reason})
	return nil
}

func (f *fakeOrphans) Entries() []orphanEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orphanEntry(nil), f.entries...)
}

type fixture struct {
	mem      *storage.MemoryStorage
	store    *storagetest.Recorder
	identity *fakeIdentity
	orphans  *fakeOrphans
	logs     *observer.ObservedLogs
	logger   *zap.SugaredLogger
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()

	mem := storage.NewMemoryStorage(testBaseURL)
	f := &fixture{
		mem:      mem,
		store:    storagetest.New(mem),
		identity: &fakeIdentity{},
		orphans:  &fakeOrphans{},
		logs:     logs,
		logger:   logger,
	}
	f.svc = NewService(f.store, f.identity, f.orphans, Options{
		Now: func() time.Time { return time.UnixMilli(1700000000000) },
	}, logger)
	return f
}

// seed 直接写入底层存储，不经过记录器
func (f *fixture) seed(t *testing.T, key string, data []byte) {
	t.Helper()
	require.NoError(t, f.mem.Put(context.Background(), key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{}))
}

func (f *fixture) generator(opts GeneratorOptions) *Generator {
	return NewGenerator(f.store, ImagingResizer{}, f.orphans, opts, f.logger)
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 10, G: 200, B: 10, A: 128})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}
