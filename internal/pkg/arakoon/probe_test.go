package arakoon

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCluster answers Nop with the next scripted error, then nil.
type scriptedCluster struct {
	script []error
	calls  int
}

func (c *scriptedCluster) Nop(context.Context) error {
	c.calls++
	if c.calls <= len(c.script) {
		return c.script[c.calls-1]
	}
	return nil
}

func (c *scriptedCluster) GetCluster(string) (ClusterClient, error) { return c, nil }

type recordingObserver struct {
	errs []error
}

func (o *recordingObserver) ProbeAttempt(_ string, err error) { o.errs = append(o.errs, err) }

func noBytes(addr string) error {
	return fmt.Errorf("%s: %w", addr, ErrNoBytesRead)
}

func TestWaitForClusterRetriesUntilAnswer(t *testing.T) {
	cluster := &scriptedCluster{script: []error{noBytes("10.0.0.1:26400"), noBytes("10.0.0.1:26400")}}
	timer := newFakeTimer()
	observer := &recordingObserver{}

	prober := NewProber(cluster, testLogger(t), WithProbeTimer(timer), WithProbeObserver(observer))
	require.NoError(t, prober.WaitForCluster(context.Background(), testCluster))

	assert.Equal(t, 3, cluster.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, timer.durations)
	require.Len(t, observer.errs, 3)
	assert.NoError(t, observer.errs[2])
}

func TestWaitForClusterGivesUp(t *testing.T) {
	cluster := &scriptedCluster{script: []error{noBytes("a"), noBytes("b"), noBytes("c"), noBytes("d")}}
	timer := newFakeTimer()

	prober := NewProber(cluster, testLogger(t), WithProbeTimer(timer))
	err := prober.WaitForCluster(context.Background(), testCluster)

	var unavailable *ClusterUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 3, unavailable.Attempts)
	assert.ErrorIs(t, err, ErrNoBytesRead)
	assert.Equal(t, 3, cluster.calls)
	assert.Len(t, timer.durations, 2)
}

func TestWaitForClusterDoesNotRetryOtherErrors(t *testing.T) {
	cause := &ClusterError{Code: 0x05, Message: "no magic"}
	cluster := &scriptedCluster{script: []error{cause}}
	timer := newFakeTimer()

	prober := NewProber(cluster, testLogger(t), WithProbeTimer(timer))
	err := prober.WaitForCluster(context.Background(), testCluster)

	var clusterErr *ClusterError
	require.True(t, errors.As(err, &clusterErr))
	var unavailable *ClusterUnavailableError
	assert.False(t, errors.As(err, &unavailable))
	assert.Equal(t, 1, cluster.calls)
	assert.Empty(t, timer.durations)
}

func TestWaitForClusterWaitsBetweenAttempts(t *testing.T) {
	cluster := &scriptedCluster{script: []error{noBytes("a"), noBytes("b"), noBytes("c")}}
	prober := NewProber(cluster, testLogger(t), WithProbeDelay(20*time.Millisecond))

	start := time.Now()
	err := prober.WaitForCluster(context.Background(), testCluster)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestWaitForClusterHonoursContext(t *testing.T) {
	cluster := &scriptedCluster{script: []error{noBytes("a"), noBytes("b"), noBytes("c")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober := NewProber(cluster, testLogger(t), WithProbeDelay(time.Hour))
	err := prober.WaitForCluster(ctx, testCluster)

	require.Error(t, err)
	assert.Equal(t, 1, cluster.calls)
}

func TestWaitForClusterRejectsUnsafeClusterID(t *testing.T) {
	cluster := &scriptedCluster{}
	prober := NewProber(cluster, testLogger(t), WithProbeTimer(newFakeTimer()))

	err := prober.WaitForCluster(context.Background(), "../x")
	assert.ErrorIs(t, err, ErrInvalidClusterID)
	assert.Zero(t, cluster.calls)
}
