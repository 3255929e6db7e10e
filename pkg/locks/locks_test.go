package locks

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locker := NewKeyedMutex()

	var (
		counter int
		wg      sync.WaitGroup
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := locker.WithLock(context.Background(), "case-1", func(_ context.Context) error {
				counter++

				return nil
			})
			require.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locker := NewKeyedMutex()
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "case-1", func(_ context.Context) error {
			close(entered)
			<-release

			return nil
		})
	}()

	<-entered

	// A different key must not block behind case-1.
	err := locker.WithLock(context.Background(), "case-2", func(_ context.Context) error {
		return nil
	})
	require.NoError(t, err)

	close(release)
}
