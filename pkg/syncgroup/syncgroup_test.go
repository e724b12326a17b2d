package syncgroup

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncGroup_RunsAllAndJoins(t *testing.T) {
	var n int32
	sg := NewSyncGroup()
	for i := 0; i < 2; i++ {
		sg.Add(func() {
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&n, 1)
		})
	}
	sg.Add(nil)

	sg.Run()
	sg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&n))
	assert.Empty(t, sg.Panics())
}

func TestSyncGroup_PanicIsIsolated(t *testing.T) {
	var done int32
	sg := NewSyncGroup()
	sg.Add(func() { panic("boom") })
	sg.Add(func() {
		time.Sleep(10 * time.Millisecond)
		atomic.StoreInt32(&done, 1)
	})

	sg.Run()
	sg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&done))
	if assert.Len(t, sg.Panics(), 1) {
		assert.Contains(t, sg.Panics()[0].Error(), "boom")
	}

	sg.WaitAndClear()
	assert.Empty(t, sg.Panics())
}

func TestSyncGroup_ReuseAfterClear(t *testing.T) {
	var n int32
	sg := NewSyncGroup()
	sg.Add(func() { atomic.AddInt32(&n, 1) })
	sg.Run()
	sg.WaitAndClear()

	sg.Add(func() { atomic.AddInt32(&n, 10) })
	sg.Run()
	sg.Wait()
	assert.Equal(t, int32(11), atomic.LoadInt32(&n))
}
