package guest

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestStoragePairCallRoundTrips(t *testing.T) {
	pair := NewStoragePair(nil, nil)

	send := func(frame []byte) ([]byte, error) {
		var call StorageCall
		require.NoError(t, cbor.Unmarshal(frame, &call))
		require.Equal(t, "read", call.Op)
		return cbor.Marshal(StorageReply{OK: true, Payload: []byte("data")})
	}

	reply, err := pair.Call("read", nil, send)
	require.NoError(t, err)
	require.True(t, reply.OK)
	require.Equal(t, []byte("data"), reply.Payload)
}

func TestStoragePairCallWrapsTransportError(t *testing.T) {
	pair := NewStoragePair(nil, nil)
	_, err := pair.Call("write", nil, func([]byte) ([]byte, error) {
		return nil, errors.New("boom")
	})
	require.ErrorIs(t, err, ErrStorageCall)
}
