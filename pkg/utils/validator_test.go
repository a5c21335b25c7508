package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIP(t *testing.T) {
	assert.NoError(t, ValidateIP("10.100.1.2"))
	assert.Error(t, ValidateIP("10.100.1"))
	assert.Error(t, ValidateIP("fe80::1"))
	assert.Error(t, ValidateIP(""))
}

func TestValidateClusterID(t *testing.T) {
	for _, id := range []string{"abm", "nsm_0", "ovsdb-1"} {
		assert.NoError(t, ValidateClusterID(id), id)
	}
	for _, id := range []string{"", "-abm", "a/b", "a b", "clu$ter"} {
		assert.Error(t, ValidateClusterID(id), id)
	}
}

func TestParsePortRange(t *testing.T) {
	ports, err := ParsePortRange("26400-26402, 26500,26401")
	require.NoError(t, err)
	assert.Equal(t, []int{26400, 26401, 26402, 26500}, ports)

	for _, bad := range []string{"", "26402-26400", "abc", "0-10", "26400-70000"} {
		_, err := ParsePortRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestAPIErrorFormatting(t *testing.T) {
	err := NewPortAllocationError(errors.New("1 of 2 ports free on 10.0.0.1"))
	assert.Equal(t, CodePortAllocation, err.Code)
	assert.Equal(t, "no free ports available: 1 of 2 ports free on 10.0.0.1", err.Error())

	plain := &APIError{Code: CodeSystem, Message: "system error"}
	assert.Equal(t, "system error", plain.Error())
}
