package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransferKindFor_Grid exercises the full (src, dst) grid: the four valid
// pairings map to exactly one kind each, and any side being Unknown fails
// before a device-level call could be issued.
func TestTransferKindFor_Grid(t *testing.T) {
	tests := []struct {
		name    string
		src     Type
		dst     Type
		want    TransferKind
		wantErr bool
	}{
		{name: "host to host", src: CPU, dst: CPU, want: HostToHost},
		{name: "host to device", src: CPU, dst: CUDA, want: HostToDevice},
		{name: "device to host", src: CUDA, dst: CPU, want: DeviceToHost},
		{name: "device to device", src: CUDA, dst: CUDA, want: DeviceToDevice},
		{name: "unknown source", src: Unknown, dst: CPU, wantErr: true},
		{name: "unknown destination", src: CUDA, dst: Unknown, wantErr: true},
		{name: "both unknown", src: Unknown, dst: Unknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := TransferKindFor(tt.src, tt.dst)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownDevice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "cpu", CPU.String())
	assert.Equal(t, "cuda", CUDA.String())
	assert.Equal(t, "unknown", Unknown.String())
	assert.True(t, CPU.IsHost())
	assert.False(t, CUDA.IsHost())
}

func TestTransferKindString(t *testing.T) {
	assert.Equal(t, "host-to-device", HostToDevice.String())
	assert.Equal(t, "invalid", TransferKind(99).String())
}
