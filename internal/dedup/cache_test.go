package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock provides a controllable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_SeenAfterMark(t *testing.T) {
	t.Parallel()

	c := New(10, time.Minute)

	assert.False(t, c.Seen("add_Movie_100"))
	c.Mark("add_Movie_100")
	assert.True(t, c.Seen("add_Movie_100"))
	assert.False(t, c.Seen("delete_Movie_100"))
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(10, time.Minute, WithClock(clock.Now))

	c.Mark("add_TV_200_1")
	assert.True(t, c.Seen("add_TV_200_1"))

	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen("add_TV_200_1"))

	clock.Advance(2 * time.Second)
	assert.False(t, c.Seen("add_TV_200_1"))
}

func TestCache_MarkRefreshesTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(10, time.Minute, WithClock(clock.Now))

	c.Mark("key")
	clock.Advance(45 * time.Second)
	c.Mark("key")
	clock.Advance(45 * time.Second)

	// 90s after the first Mark but only 45s after the refresh.
	assert.True(t, c.Seen("key"))
}

func TestCache_CapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	c := New(3, time.Minute)

	c.Mark("a")
	c.Mark("b")
	c.Mark("c")
	c.Mark("d")

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("a"))
	assert.True(t, c.Seen("b"))
	assert.True(t, c.Seen("c"))
	assert.True(t, c.Seen("d"))
}

func TestCache_RefreshProtectsFromEviction(t *testing.T) {
	t.Parallel()

	c := New(3, time.Minute)

	c.Mark("a")
	c.Mark("b")
	c.Mark("c")
	// Refreshing "a" moves it to the back of the eviction order.
	c.Mark("a")
	c.Mark("d")

	assert.True(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
}

func TestCache_ExpiredEntriesFreeCapacity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(2, time.Minute, WithClock(clock.Now))

	c.Mark("a")
	c.Mark("b")
	clock.Advance(2 * time.Minute)

	c.Mark("c")
	assert.True(t, c.Seen("c"))
	assert.False(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
}

func TestCache_DefaultBounds(t *testing.T) {
	t.Parallel()

	c := New(0, 0)

	for i := 0; i < DefaultMaxEntries*2; i++ {
		c.Mark(fmt.Sprintf("key-%d", i))
	}
	assert.Equal(t, DefaultMaxEntries, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New(50, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d", (g*100+i)%75)
				c.Mark(key)
				c.Seen(key)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
