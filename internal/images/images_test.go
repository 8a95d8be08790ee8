package images

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUploadAndDestroy(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	ref, err := mem.Upload(ctx, "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "memory://mood-entries/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, mem.Destroy(ctx, ref))
	assert.Equal(t, 0, mem.Len())

	assert.ErrorIs(t, mem.Destroy(ctx, "https://elsewhere/x.png"), ErrUnknownRef)
}

func TestUploadRejectsUnsupportedTypes(t *testing.T) {
	_, err := NewMemory().Upload(context.Background(), "application/pdf", strings.NewReader("%PDF"), 4)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), "image/png", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, Disabled{}.Destroy(context.Background(), "anything"))
}

func TestS3KeyOf(t *testing.T) {
	s := &S3Store{bucket: "moodsun-images", base: "http://localhost:9000/moodsun-images/"}

	key, ok := s.keyOf("http://localhost:9000/moodsun-images/mood-entries/abc.png")
	assert.True(t, ok)
	assert.Equal(t, "mood-entries/abc.png", key)

	_, ok = s.keyOf("http://localhost:9000/other/mood-entries/abc.png")
	assert.False(t, ok)
	_, ok = s.keyOf("http://localhost:9000/moodsun-images/mood-entries/../secret")
	assert.False(t, ok)
	_, ok = s.keyOf("http://localhost:9000/moodsun-images/avatars/abc.png")
	assert.False(t, ok)
}
