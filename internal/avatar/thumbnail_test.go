package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoixa/engi-tracker/database/models"
	"github.com/anoixa/engi-tracker/storage/storagetest"
)

func decodeSize(t *testing.T, data []byte) (string, image.Point) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return format, image.Pt(cfg.Width, cfg.Height)
}

func TestGenerator_SkipsThumbnailKeys(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "thumbnails/avatars/u1/a.png", testPNG(t, 10, 10))

	summary := f.generator(GeneratorOptions{}).Process(context.Background(), []string{
		"thumbnails/avatars/u1/a.png",
		"uploads/stray.png",
	})

	assert.Equal(t, Summary{Skipped: 2}, summary)
	assert.Empty(t, f.store.Calls())
}

func TestGenerator_CreatesThumbnailThenDeletesSource(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "avatars/u1/wide.jpg", testJPEG(t, 640, 320))
	f.seed(t, "avatars/u1/alpha.png", testPNG(t, 150, 300))

	summary := f.generator(GeneratorOptions{Concurrency: 2}).Process(context.Background(), []string{
		"avatars/u1/wide.jpg",
		"avatars/u1/alpha.png",
	})
	assert.Equal(t, Summary{Succeeded: 2}, summary)

	for _, key := range []string{"avatars/u1/wide.jpg", "avatars/u1/alpha.png"} {
		obj, ok := f.mem.Object("thumbnails/" + key)
		require.True(t, ok, key)
		assert.Equal(t, "image/jpeg", obj.ContentType)
		assert.Equal(t, "max-age=31536000", obj.CacheControl)

		format, size := decodeSize(t, obj.Data)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, image.Pt(200, 200), size)

		_, ok = f.mem.Object(key)
		assert.False(t, ok, "source %s should be removed", key)
	}
}

// 删除原图只发生在缩略图写入成功之后
func TestGenerator_DeleteOnlyAfterSuccessfulPut(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "avatars/u1/a.jpg", testJPEG(t, 50, 50))

	summary := f.generator(GeneratorOptions{}).Process(context.Background(), []string{"avatars/u1/a.jpg"})
	require.Equal(t, Summary{Succeeded: 1}, summary)

	calls := f.store.Calls()
	putIdx, delIdx := -1, -1
	for i, c := range calls {
		switch c.Op {
		case storagetest.OpPut:
			putIdx = i
			require.NoError(t, c.Err)
		case storagetest.OpDelete:
			delIdx = i
		}
	}
	require.NotEqual(t, -1, putIdx)
	require.NotEqual(t, -1, delIdx)
	assert.Less(t, putIdx, delIdx)
}

func TestGenerator_PutFailureKeepsSource(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "avatars/u1/a.jpg", testJPEG(t, 50, 50))
	f.store.FailWith(func(op storagetest.Op, _ string) error {
		if op == storagetest.OpPut {
			return errors.New("bucket full")
		}
		return nil
	})

	summary := f.generator(GeneratorOptions{}).Process(context.Background(), []string{"avatars/u1/a.jpg"})

	assert.Equal(t, Summary{Failed: 1}, summary)
	assert.Empty(t, f.store.CallsOf(storagetest.OpDelete))
	_, ok := f.mem.Object("avatars/u1/a.jpg")
	assert.True(t, ok)
}

func TestGenerator_SourceDeleteFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "avatars/u1/a.jpg", testJPEG(t, 50, 50))
	f.store.FailWith(func(op storagetest.Op, _ string) error {
		if op == storagetest.OpDelete {
			return errors.New("access denied")
		}
		return nil
	})

	summary := f.generator(GeneratorOptions{}).Process(context.Background(), []string{"avatars/u1/a.jpg"})

	assert.Equal(t, Summary{Succeeded: 1}, summary)
	_, ok := f.mem.Object("thumbnails/avatars/u1/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, []orphanEntry{
		{KeyOrPrefix: "avatars/u1/a.jpg", Reason: models.OrphanReasonSourceDelete},
	}, f.orphans.Entries())
}

func TestGenerator_FailuresAreIsolated(t *testing.T) {
	f := newFixture(t)
	keys := make([]string, 0, 8)
	for i := range 6 {
		key := fmt.Sprintf("avatars/u%d/ok.jpg", i)
		f.seed(t, key, testJPEG(t, 40, 40))
		keys = append(keys, key)
	}
	f.seed(t, "avatars/u9/corrupt.png", []byte("not an image"))
	keys = append(keys, "avatars/u9/corrupt.png", "avatars/u9/missing.png", "thumbnails/avatars/u1/ok.jpg")

	summary := f.generator(GeneratorOptions{Concurrency: 3}).Process(context.Background(), keys)

	assert.Equal(t, Summary{Succeeded: 6, Failed: 2, Skipped: 1}, summary)
	assert.Equal(t, len(keys), summary.Total())
	_, ok := f.mem.Object("avatars/u9/corrupt.png")
	assert.True(t, ok, "failed record must keep its source")
}

type panicResizer struct{}

func (panicResizer) Name() string { return "panic" }

func (panicResizer) Cover([]byte, int, int) ([]byte, error) {
	panic("decoder bug")
}

func TestGenerator_PanicCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "avatars/u1/a.jpg", testJPEG(t, 10, 10))

	g := NewGenerator(f.store, panicResizer{}, nil, GeneratorOptions{}, f.logger)
	summary := g.Process(context.Background(), []string{"avatars/u1/a.jpg"})

	assert.Equal(t, Summary{Failed: 1}, summary)
	assert.Empty(t, f.store.CallsOf(storagetest.OpDelete))
}

func TestDecodeEventKey(t *testing.T) {
	key, err := DecodeEventKey("avatars/u1/my+photo%281%29.png")
	require.NoError(t, err)
	assert.Equal(t, "avatars/u1/my photo(1).png", key)

	key, err = DecodeEventKey("avatars/u1/a%2Bb.png")
	require.NoError(t, err)
	assert.Equal(t, "avatars/u1/a+b.png", key)

	_, err = DecodeEventKey("avatars/u1/%zz.png")
	assert.Error(t, err)
}

func s3Event(keys ...string) events.S3Event {
	var ev events.S3Event
	for _, k := range keys {
		var rec events.S3EventRecord
		rec.EventName = "ObjectCreated:Put"
		rec.S3.Bucket.Name = "avatars-bucket"
		rec.S3.Object.Key = k
		ev.Records = append(ev.Records, rec)
	}
	return ev
}

// 上传后触发生成器，得到缩略图且原图被删除
func TestUploadThenGenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := testJPEG(t, 1600, 1200)
	res, err := f.svc.Upload(ctx, "u1", uploadOf("holiday photo.jpg", "image/jpeg", data))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.URL, res.Key))

	// 通知中的键经过 URL 编码
	encoded := strings.ReplaceAll(res.Key, " ", "+")
	summary := f.generator(GeneratorOptions{}).HandleS3Event(ctx, s3Event(encoded, "%zz"))
	assert.Equal(t, Summary{Succeeded: 1, Failed: 1}, summary)

	thumb, ok := f.mem.Object(ThumbnailKey(res.Key))
	require.True(t, ok)
	_, size := decodeSize(t, thumb.Data)
	assert.Equal(t, image.Pt(200, 200), size)

	_, ok = f.mem.Object(res.Key)
	assert.False(t, ok)

	// 之后用缩略图 URL 删除头像
	require.NoError(t, f.svc.DeleteAvatar(ctx, "u1", f.mem.PublicURL(ThumbnailKey(res.Key))))
	assert.Equal(t, 0, f.mem.Len())
}
