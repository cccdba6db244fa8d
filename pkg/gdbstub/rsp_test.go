package gdbstub

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovmrun/hatchery/pkg/vm"
)

func TestLeHex64EncodesLittleEndian(t *testing.T) {
	require.Equal(t, "0100000000000000", leHex64(1))
	require.Equal(t, "ff00000000000000", leHex64(0xff))
}

func TestEncodeRegistersLengthMatchesEightFields(t *testing.T) {
	enc := encodeRegisters(vm.Registers{RIP: 0x1234})
	require.Len(t, enc, 8*16)
}
