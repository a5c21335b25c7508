package arakoon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arakoon-deploy-backend/internal/pkg/remote/remotetest"
)

const ssOutput = `LISTEN 0      128          0.0.0.0:22        0.0.0.0:*
LISTEN 0      4096       127.0.0.1:26400     0.0.0.0:*
LISTEN 0      4096            [::]:26402        [::]:*
`

func TestListeningPorts(t *testing.T) {
	remotes := remotetest.NewFactory()
	remotes.HandlePrefix("10.0.0.1", "ss -ltnH", ssOutput)
	client, err := remotes.Open("10.0.0.1", "ovs")
	require.NoError(t, err)

	ports, err := ListeningPorts(client)
	require.NoError(t, err)
	assert.Len(t, ports, 3)
	for _, p := range []int{22, 26400, 26402} {
		assert.Contains(t, ports, p)
	}
}

func TestFreePorts(t *testing.T) {
	remotes := remotetest.NewFactory()
	remotes.HandlePrefix("10.0.0.1", "ss -ltnH", ssOutput)
	client, err := remotes.Open("10.0.0.1", "ovs")
	require.NoError(t, err)

	free, err := FreePorts(client, "26400-26410", []int{26401}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{26403, 26404}, free)

	free, err = FreePorts(client, "26400,26403,27000-27001", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{26403, 27000, 27001}, free)

	_, err = FreePorts(client, "26400-26403", []int{26401}, 2)
	var portErr *PortAllocationError
	require.True(t, errors.As(err, &portErr))
	assert.Equal(t, 1, portErr.Available)
	assert.Equal(t, "10.0.0.1", portErr.Host)

	_, err = FreePorts(client, "not-a-range", nil, 2)
	assert.Error(t, err)
}

func TestMachineID(t *testing.T) {
	remotes := remotetest.NewFactory()
	remotes.HandlePrefix("10.0.0.1", "ip a", "52540A1B2C3D\n")
	client, err := remotes.Open("10.0.0.1", "ovs")
	require.NoError(t, err)

	id, err := MachineID(client)
	require.NoError(t, err)
	assert.Equal(t, "52540a1b2c3d", id)

	empty, err := remotes.Open("10.0.0.2", "ovs")
	require.NoError(t, err)
	_, err = MachineID(empty)
	assert.Error(t, err)
}
