package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd/internal/fixtures"
)

type notifyRecorder struct {
	NullStatser
	ch chan time.Duration
}

func (nr *notifyRecorder) NotifyFlush(ctx context.Context, d time.Duration) {
	nr.ch <- d
}

func TestFlusherNotifies(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx, clck := fixtures.NewMockClockContext(ctx, time.Unix(0, 0))
	nr := &notifyRecorder{ch: make(chan time.Duration, 10)}
	ctx = NewContext(ctx, nr)

	done := make(chan struct{})
	go func() {
		NewFlusher(time.Second).Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		fixtures.NextStep(ctx, clck)
		select {
		case d := <-nr.ch:
			assert.Equal(t, time.Second, d)
		case <-ctx.Done():
			require.FailNow(t, "timed out")
		}
	}
	cancel()
	<-done
}
