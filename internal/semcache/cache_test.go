package semcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/carelink/internal/embedding"
	"github.com/carelink-health/carelink/internal/vectorstore"
)

// bucketEmbedder maps known phrases to fixed directions so semantically
// "equal" questions collide and everything else stays apart.
var bucketEmbedder = embedding.Func(func(_ context.Context, text string) ([]float32, error) {
	switch text {
	case "giờ làm việc của bệnh viện", "bệnh viện mở cửa lúc mấy giờ":
		return []float32{1, 0, 0}, nil
	case "chi phí khám tổng quát":
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
})

func newTestCache(t *testing.T) (*Cache, *vectorstore.MemoryStore) {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	return New(bucketEmbedder, store, nil, 0), store
}

func TestStoreAndLookupRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "giờ làm việc của bệnh viện", "Bệnh viện làm việc từ 7h đến 17h, thứ Hai tới thứ Bảy."))

	answer, ok := cache.Lookup(ctx, "bệnh viện mở cửa lúc mấy giờ")
	require.True(t, ok)
	assert.Contains(t, answer, "7h")
}

func TestLookupMissOnDifferentTopic(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "giờ làm việc của bệnh viện", "Từ 7h đến 17h."))

	_, ok := cache.Lookup(ctx, "chi phí khám tổng quát")
	assert.False(t, ok)
}

func TestSpecificAnswerNeverStored(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "giờ làm việc của bệnh viện", "Mã đặt lịch của bạn là APT-9K2X4B7Q."))

	hits, err := store.Search(ctx, vectorstore.CollectionAnswers, []float32{1, 0, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "answers with booking codes must not be persisted")
}

func TestSpecificAnswerNeverServed(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()

	// Simulate an entry written before the heuristic covered this shape.
	require.NoError(t, store.Upsert(ctx, vectorstore.CollectionAnswers, "stale",
		[]float32{1, 0, 0}, map[string]string{
			payloadQuery:  "giờ làm việc của bệnh viện",
			payloadAnswer: "Bạn có lịch khám lúc 9:00 ngày 12/10/2025, slot L03.",
		}))

	_, ok := cache.Lookup(ctx, "giờ làm việc của bệnh viện")
	assert.False(t, ok, "previously stored specific answers must not be returned")
}

func TestContainsSpecificData(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"booking code", "Mã của bạn là APT-ABC123XY", true},
		{"slot ref with scheduling vocab", "Bạn đã chọn slot L02 cho lịch khám", true},
		{"date with scheduling vocab", "Lịch hẹn ngày 12/10/2025 đã được xác nhận", true},
		{"medical record number", "Hồ sơ BN-123456 đã cập nhật", true},
		{"money amount", "Phí khám là 350.000 đ", true},
		{"plain info answer", "Khoa tim mạch nằm ở tầng 3 tòa nhà A", false},
		{"date without scheduling vocab", "Bệnh viện thành lập ngày 2/9/1975", false},
		{"bare L code without vocab", "Vitamin L02 là tên thương mại", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsSpecificData(tt.text))
		})
	}
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		prompt string
		want   bool
	}{
		{"giờ làm việc của bệnh viện", true},
		{"ok", false},
		{"đúng rồi", false},
		{"Vâng", false},
		{"tôi muốn đặt lịch khám nhi", false},
		{"toa thuốc của tôi có gì", false},
		{"", false},
		{"triệu chứng đau đầu kéo dài", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Cacheable(tt.prompt), "prompt %q", tt.prompt)
	}
}

func TestLookupFailsOpenAsMiss(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	failing := embedding.Func(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding down")
	})
	cache := New(failing, store, nil, 0)

	_, ok := cache.Lookup(context.Background(), "giờ làm việc của bệnh viện")
	assert.False(t, ok)
}
