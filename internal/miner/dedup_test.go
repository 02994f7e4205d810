package miner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTitleKeywords(t *testing.T) {
	keywords := titleKeywords("How to Fix the VPN Connection!")
	require.Equal(t, map[string]bool{"fix": true, "vpn": true, "connection": true}, keywords)
}

func TestTitleOverlap(t *testing.T) {
	require.Equal(t, 1.0, titleOverlap("Fix VPN timeouts", "fix vpn timeouts"))
	require.Zero(t, titleOverlap("Printer jams", "VPN timeouts"))
	require.Zero(t, titleOverlap("", "VPN timeouts"))

	// "fix vpn timeouts" vs "fix vpn errors": 2 shared of 4 union.
	require.InDelta(t, 0.5, titleOverlap("Fix VPN timeouts", "Fix VPN errors"), 1e-9)
}

func TestIsDuplicateTitle(t *testing.T) {
	existing := []string{
		"Resolving printer paper jams",
		"Resetting VPN credentials",
	}

	require.True(t, isDuplicateTitle("Resolving paper jams printer", existing, 0.5))
	require.False(t, isDuplicateTitle("Configuring email forwarding", existing, 0.5))

	// One shared keyword out of five: 0.2 overlap, caught by a low threshold.
	require.True(t, isDuplicateTitle("VPN setup guide", existing, 0.2))
}
