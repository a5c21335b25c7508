package arakoon

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/remote/remotetest"
)

const testCluster = "metacluster"

func testLogger(t *testing.T) *logger.Logger {
	return logger.New(zaptest.NewLogger(t))
}

type testEnv struct {
	remotes   *remotetest.Factory
	services  *ServiceControl
	installer *Installer
}

// newTestEnv wires an Installer onto an in-memory remote. Every host in
// machineIDs answers the machine id command; no port is in use.
func newTestEnv(t *testing.T, machineIDs map[string]string) *testEnv {
	t.Helper()

	remotes := remotetest.NewFactory()
	for ip, id := range machineIDs {
		remotes.HandlePrefix(ip, "ip a | grep link/ether", id)
	}

	log := testLogger(t)
	layout := DefaultLayout()
	services := NewServiceControl(remotes, layout, "root", log)
	installer := NewInstaller(remotes, services, InstallerConfig{
		Layout:       layout,
		BaseDir:      "/mnt/db/",
		PortRange:    "26400-26499",
		OvsUser:      "ovs",
		RootUser:     "root",
		EngineBinary: "/usr/bin/arakoon",
	}, log)

	return &testEnv{remotes: remotes, services: services, installer: installer}
}

func testNode(name, ip string, port int) NodeConfig {
	return NewNodeConfig(name, ip, port, port+1,
		"/var/log/arakoon/"+testCluster,
		"/mnt/db/arakoon/"+testCluster,
		"/mnt/db/tlogs/"+testCluster,
	)
}

// seedCluster deploys an n member cluster on 10.0.0.1..n.
func (e *testEnv) seedCluster(t *testing.T, n int) *ClusterConfig {
	t.Helper()
	config := NewClusterConfig(DefaultLayout(), testCluster, nil)
	for i := 1; i <= n; i++ {
		config.AddNode(testNode(fmt.Sprintf("node%d", i), fmt.Sprintf("10.0.0.%d", i), 26400))
	}
	if _, err := e.installer.Deploy(config); err != nil {
		t.Fatalf("seed cluster: %v", err)
	}
	e.remotes.Reset()
	return config
}

type fakeTimer struct {
	durations []time.Duration
	c         chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.durations = append(t.durations, d)
	t.c <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }
