package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferAllocation(t *testing.T) {
	t.Run("AllocatesSmallBuffer", func(t *testing.T) {
		buf := Get(12) // resume_resp payload
		defer Put(buf)

		assert.Len(t, buf, 12)
		assert.Equal(t, DefaultSmallSize, cap(buf))
	})

	t.Run("AllocatesMediumBuffer", func(t *testing.T) {
		buf := Get(405) // packed state record
		defer Put(buf)

		assert.Len(t, buf, 405)
		assert.Equal(t, DefaultMediumSize, cap(buf))
	})

	t.Run("AllocatesLargeBuffer", func(t *testing.T) {
		buf := Get(2040) // max payload
		defer Put(buf)

		assert.Len(t, buf, 2040)
		assert.Equal(t, DefaultLargeSize, cap(buf))
	})

	t.Run("AllocatesOversizedBuffer", func(t *testing.T) {
		buf := Get(3 * DefaultLargeSize)
		defer Put(buf)

		assert.Len(t, buf, 3*DefaultLargeSize)
		assert.Equal(t, len(buf), cap(buf))
	})

	t.Run("AllocatesZeroSizeBuffer", func(t *testing.T) {
		buf := Get(0) // empty payload (ping, end_turn)
		defer Put(buf)

		assert.NotNil(t, buf)
		assert.Equal(t, DefaultSmallSize, cap(buf))
	})
}

func TestBufferSizeClasses(t *testing.T) {
	t.Run("TierBoundariesInclusive", func(t *testing.T) {
		for _, size := range []int{DefaultSmallSize, DefaultMediumSize, DefaultLargeSize} {
			buf := Get(size)
			assert.Equal(t, size, len(buf))
			assert.Equal(t, size, cap(buf))
			Put(buf)
		}
	})

	t.Run("JustAboveSmall", func(t *testing.T) {
		buf := Get(DefaultSmallSize + 1)
		defer Put(buf)
		assert.Equal(t, DefaultMediumSize, cap(buf))
	})

	t.Run("JustAboveMedium", func(t *testing.T) {
		buf := Get(DefaultMediumSize + 1)
		defer Put(buf)
		assert.Equal(t, DefaultLargeSize, cap(buf))
	})

	t.Run("JustAboveLarge", func(t *testing.T) {
		buf := Get(DefaultLargeSize + 1)
		defer Put(buf)
		assert.GreaterOrEqual(t, len(buf), DefaultLargeSize+1)
	})
}

func TestBufferPutAndReuse(t *testing.T) {
	t.Run("ReusesReturnedBuffer", func(t *testing.T) {
		buf1 := Get(32)
		Put(buf1)

		buf2 := Get(32)
		Put(buf2)

		assert.Equal(t, cap(buf1), cap(buf2))
	})

	t.Run("HandlesNilPut", func(t *testing.T) {
		require.NotPanics(t, func() {
			Put(nil)
		})
	})

	t.Run("HandlesEmptySlicePut", func(t *testing.T) {
		require.NotPanics(t, func() {
			Put([]byte{})
		})
	})

	t.Run("DoesNotPoolOversizedBuffers", func(t *testing.T) {
		buf := Get(3 * DefaultLargeSize)
		require.NotPanics(t, func() {
			Put(buf)
		})
	})

	t.Run("PutWithoutGet", func(t *testing.T) {
		buf := make([]byte, DefaultSmallSize)
		require.NotPanics(t, func() {
			Put(buf)
		})
	})
}

func TestCustomPool(t *testing.T) {
	t.Run("CustomSizes", func(t *testing.T) {
		pool := NewPool(&Config{
			SmallSize:  128,
			MediumSize: 1024,
			LargeSize:  8192,
		})

		small := pool.Get(100)
		assert.Equal(t, 128, cap(small))
		pool.Put(small)

		medium := pool.Get(500)
		assert.Equal(t, 1024, cap(medium))
		pool.Put(medium)

		large := pool.Get(4000)
		assert.Equal(t, 8192, cap(large))
		pool.Put(large)
	})

	t.Run("NilConfig", func(t *testing.T) {
		pool := NewPool(nil)

		buf := pool.Get(10)
		assert.Equal(t, DefaultSmallSize, cap(buf))
		pool.Put(buf)
	})

	t.Run("ZeroConfigValues", func(t *testing.T) {
		pool := NewPool(&Config{})

		buf := pool.Get(10)
		assert.Equal(t, DefaultSmallSize, cap(buf))
		pool.Put(buf)
	})
}

func TestBufferPoolConcurrency(t *testing.T) {
	t.Run("ConcurrentGetAndPut", func(t *testing.T) {
		const numGoroutines = 10
		const iterations = 100

		var wg sync.WaitGroup
		wg.Add(numGoroutines)

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					size := (id*31 + j) % DefaultLargeSize
					buf := Get(size)
					if len(buf) > 0 {
						buf[0] = byte(id)
					}
					Put(buf)
				}
			}(i)
		}

		wg.Wait()
	})

	t.Run("ConcurrentSameSizeClass", func(t *testing.T) {
		const numGoroutines = 20
		const iterations = 50

		var wg sync.WaitGroup
		wg.Add(numGoroutines)

		for i := 0; i < numGoroutines; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					buf := Get(48)
					assert.NotNil(t, buf)
					Put(buf)
				}
			}()
		}

		wg.Wait()
	})
}

func BenchmarkGet(b *testing.B) {
	b.Run("ControlPayload", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := Get(12)
			Put(buf)
		}
	})

	b.Run("StateRecord", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := Get(405)
			Put(buf)
		}
	})

	b.Run("MaxFrame", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := Get(DefaultLargeSize)
			Put(buf)
		}
	})
}

func BenchmarkGetParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := Get(48)
			Put(buf)
		}
	})
}
