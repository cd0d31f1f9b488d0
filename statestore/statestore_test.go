package statestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pagecache/cache"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

// memS3 is an in-memory object store behind the S3Client interface.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	f, err := NewFile(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemory(),
		"file":   f,
		"s3":     NewS3(&memS3{objects: map[string][]byte{}}, "bucket", "pagecache"),
	}
}

func TestStores_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			require.NoError(t, s.Save(ctx, "a", []byte("first")))
			require.NoError(t, s.Save(ctx, "a", []byte("second")))
			got, err := s.Load(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), got)

			assert.True(t, errors.Is(s.Save(ctx, "", []byte("x")), ErrInvalidKey))
		})
	}
}

func TestMemory_CopiesBlobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	blob := []byte("abc")
	require.NoError(t, s.Save(ctx, "k", blob))
	blob[0] = 'X'

	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'Y'

	again, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestFile_RejectsPathKeysAndLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFile(dir)
	require.NoError(t, err)

	for _, key := range []string{"../escape", "a/b", ".", ".."} {
		assert.True(t, errors.Is(s.Save(ctx, key, nil), ErrInvalidKey), key)
	}

	require.NoError(t, s.Save(ctx, "model", []byte("blob")))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model", entries[0].Name())
}

func TestS3_KeyLayoutAndErrors(t *testing.T) {
	ctx := context.Background()
	client := new(mockS3Client)
	s := NewS3(client, "bkt", "team/app")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "bkt" && *in.Key == "team/app/model" && *in.ContentLength == 4
	})).Return(&s3.PutObjectOutput{}, nil).Once()
	require.NoError(t, s.Save(ctx, "model", []byte("blob")))

	denied := errors.New("access denied")
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "team/app/model"
	})).Return(nil, denied).Once()
	_, err := s.Load(ctx, "model")
	assert.True(t, errors.Is(err, denied))
	assert.False(t, errors.Is(err, ErrNotFound))

	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
	_, err = s.Load(ctx, "gone")
	assert.True(t, errors.Is(err, ErrNotFound))

	client.AssertExpectations(t)
}

// pagedFetcher accepts requests without completing them.
type pagedFetcher struct{}

func (pagedFetcher) AlreadyFetching(int) bool                       { return false }
func (pagedFetcher) RequestData(req cache.PageRequest[string]) bool { return true }
func (pagedFetcher) Reset(uint64)                                   {}
func (pagedFetcher) LowMemory()                                     {}

func TestSaveRestoreModel(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			src := cache.New[string, string](cache.Options[string]{Placeholder: "…"})
			src.SetQuery("q")
			src.DataAvailable(cache.SegmentFor(
				cache.PageRequest[string]{Page: 0, PageSize: 10, Query: "q", Epoch: 1},
				[]string{"a", "b", "c"}, 3))
			require.NoError(t, SaveModel(ctx, s, "view", src))

			dst := cache.New[string, string](cache.Options[string]{})
			dst.SetFetcher(pagedFetcher{})
			require.NoError(t, RestoreModel(ctx, s, "view", dst))

			assert.Equal(t, 3, dst.Size())
			assert.Equal(t, "b", dst.GetItem(1))
			assert.Equal(t, "…", dst.Placeholder())
			q, ok := dst.Query()
			assert.True(t, ok)
			assert.Equal(t, "q", q)

			err := RestoreModel(ctx, s, "nothing-here", dst)
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.Equal(t, 3, dst.Size())
		})
	}
}

func TestRestoreModel_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Save(ctx, "bad", []byte("not a state blob")))

	m := cache.New[string, string](cache.Options[string]{})
	err := RestoreModel(ctx, s, "bad", m)
	assert.True(t, errors.Is(err, cache.ErrCorruptState))
}
