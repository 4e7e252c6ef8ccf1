package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-backend/internal/domains/onboarding"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "http://minio/bucket/" + key, nil
}

func (m *memoryObjects) Download(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageProcessor_Validate(t *testing.T) {
	p := NewImageProcessor()

	assert.NoError(t, p.ValidateImage(pngBytes(t, 10, 10)))
	assert.Error(t, p.ValidateImage(nil))
	assert.Error(t, p.ValidateImage([]byte("not an image")))

	p.MaxSize = 10
	assert.ErrorContains(t, p.ValidateImage(pngBytes(t, 10, 10)), "exceeds")
}

func TestImageProcessor_SquareJPEG(t *testing.T) {
	p := NewImageProcessor()

	out, err := p.ProcessProfilePicture(pngBytes(t, 1200, 800))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, ProfilePictureSize, img.Bounds().Dx())
	assert.Equal(t, ProfilePictureSize, img.Bounds().Dy())

	out, err = p.ProcessProfilePicture(pngBytes(t, 300, 200))
	require.NoError(t, err)
	img, err = jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx(), "small images are not upscaled")
}

func TestProfilePictureStore(t *testing.T) {
	objects := newMemoryObjects()
	store := NewProfilePictureStore(objects, NewImageProcessor())
	ctx := context.Background()

	pic, err := store.Stage(ctx, "s1", onboarding.PictureUpload{FileName: "C:\\photos\\me.png", Data: pngBytes(t, 64, 64)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pic.Key, "onboarding/s1/"))
	assert.Equal(t, "me.jpg", pic.FileName)
	assert.Equal(t, "image/jpeg", pic.ContentType)
	assert.Equal(t, "http://minio/bucket/"+pic.Key, pic.URL)

	data, err := store.Fetch(ctx, pic.Key)
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, pic.Key))
	_, err = store.Fetch(ctx, pic.Key)
	assert.Error(t, err)

	assert.Error(t, store.Remove(ctx, "avatars/other.jpg"))
}

func TestProfilePictureStore_RejectsNonImages(t *testing.T) {
	store := NewProfilePictureStore(newMemoryObjects(), NewImageProcessor())

	_, err := store.Stage(context.Background(), "s1", onboarding.PictureUpload{FileName: "x.txt", Data: []byte("hello")})
	assert.ErrorIs(t, err, onboarding.ErrInvalidValue)
}
