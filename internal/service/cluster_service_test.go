package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arakoon-deploy-backend/internal/config"
	"arakoon-deploy-backend/internal/pkg/arakoon"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/metrics"
	"arakoon-deploy-backend/internal/pkg/remote/remotetest"
)

func testArakoonConfig() config.ArakoonConfig {
	return config.ArakoonConfig{
		ConfigRoot:    "/opt/OpenvStorage/config/arakoon",
		LogRoot:       "/var/log/arakoon",
		UnitDir:       "/etc/systemd/system",
		BaseDir:       "/mnt/db",
		PortRange:     "26400-26499",
		OvsUser:       "ovs",
		RootUser:      "root",
		EngineBinary:  "/usr/bin/arakoon",
		ManagementIP:  "10.0.0.1",
		DialTimeout:   time.Second,
		ProbeAttempts: 3,
		ProbeDelay:    time.Millisecond,
	}
}

func newTestClusterService(t *testing.T) (*ClusterService, *remotetest.Factory, *metrics.Metrics) {
	remotes := remotetest.NewFactory()
	remotes.HandlePrefix("10.0.0.1", "ip a", "aa01")
	remotes.HandlePrefix("10.0.0.2", "ip a", "bb02")
	remotes.HandlePrefix("10.0.0.3", "ip a", "cc03")

	m := metrics.New()
	log := logger.New(zaptest.NewLogger(t))
	return NewClusterService(testArakoonConfig(), remotes, m, log), remotes, m
}

func TestClusterLifecycle(t *testing.T) {
	clusters, _, m := newTestClusterService(t)

	ports, err := clusters.Create("abm", "10.0.0.1", nil, []string{"albamgr"})
	require.NoError(t, err)
	assert.Equal(t, 26400, ports.ClientPort)

	_, err = clusters.Extend("abm", "10.0.0.1", "10.0.0.2", nil)
	require.NoError(t, err)
	_, err = clusters.Extend("abm", "10.0.0.1", "10.0.0.3", nil)
	require.NoError(t, err)

	ips, err := clusters.MemberIPs("abm", "10.0.0.3")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, ips)

	states, err := clusters.Status("abm", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, arakoon.ServiceStopped, states["bb02"])

	require.NoError(t, clusters.Shrink("abm", "10.0.0.1", "10.0.0.3"))
	ips, err = clusters.MemberIPs("abm", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, ips)

	require.NoError(t, clusters.Delete("abm", "10.0.0.1"))
	_, err = clusters.Show("abm", "10.0.0.1")
	var notFound *arakoon.ConfigNotFoundError
	assert.True(t, errors.As(err, &notFound))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("extend", metrics.LabelSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("delete", metrics.LabelSuccess)))
}

func TestCreateRejectsBadClusterID(t *testing.T) {
	clusters, _, m := newTestClusterService(t)

	_, err := clusters.Create("../etc", "10.0.0.1", nil, nil)
	require.ErrorIs(t, err, arakoon.ErrInvalidClusterID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", metrics.LabelError)))
}

func TestExtendStepsWithoutRestart(t *testing.T) {
	clusters, _, _ := newTestClusterService(t)
	_, err := clusters.Create("abm", "10.0.0.1", nil, nil)
	require.NoError(t, err)

	steps := clusters.ExtendSteps("abm", "10.0.0.1", "10.0.0.2", nil, false)
	require.Len(t, steps, 1)

	var logged []string
	logf := func(format string, args ...interface{}) { logged = append(logged, format) }
	require.NoError(t, steps[0].Action(context.Background(), logf))
	assert.Len(t, logged, 1)

	ips, err := clusters.MemberIPs("abm", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, ips)

	assert.Len(t, clusters.ExtendSteps("abm", "10.0.0.1", "10.0.0.2", nil, true), 2)
	assert.Len(t, clusters.ShrinkSteps("abm", "10.0.0.1", "10.0.0.2", true), 2)
}

func TestWaitWithoutConfiguration(t *testing.T) {
	clusters, _, m := newTestClusterService(t)

	err := clusters.Wait(context.Background(), "abm")

	var notFound *arakoon.ConfigNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeAttempts.WithLabelValues(metrics.LabelError)))
}

func TestOperationsRejectUnsafeClusterID(t *testing.T) {
	clusters, remotes, _ := newTestClusterService(t)
	hostile := "x; touch /tmp/owned #"
	ctx := context.Background()

	_, err := clusters.Extend(hostile, "10.0.0.1", "10.0.0.2", nil)
	assert.ErrorIs(t, err, arakoon.ErrInvalidClusterID)
	assert.ErrorIs(t, clusters.Shrink(hostile, "10.0.0.1", "10.0.0.2"), arakoon.ErrInvalidClusterID)
	assert.ErrorIs(t, clusters.Delete(hostile, "10.0.0.1"), arakoon.ErrInvalidClusterID)
	_, err = clusters.Show(hostile, "10.0.0.1")
	assert.ErrorIs(t, err, arakoon.ErrInvalidClusterID)
	_, err = clusters.Status(hostile, "10.0.0.1")
	assert.ErrorIs(t, err, arakoon.ErrInvalidClusterID)
	assert.ErrorIs(t, clusters.Wait(ctx, hostile), arakoon.ErrInvalidClusterID)
	assert.ErrorIs(t, clusters.RestartAfterAdd(ctx, hostile, []string{"10.0.0.1"}, "10.0.0.2"), arakoon.ErrInvalidClusterID)
	assert.ErrorIs(t, clusters.RestartAfterRemove(ctx, hostile, []string{"10.0.0.1"}), arakoon.ErrInvalidClusterID)

	assert.Empty(t, remotes.Calls())
}
