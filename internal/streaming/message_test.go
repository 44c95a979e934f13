package streaming

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_RequiresTypeAndAddress(t *testing.T) {
	_, err := Encode(Message{Address: "0xabc"})
	require.EqualError(t, err, "message type is required")

	_, err = Encode(Message{Type: MessageTypeLookup})
	require.EqualError(t, err, "address is required")
}

func TestDecode_RejectsIncompleteMessages(t *testing.T) {
	_, err := Decode([]byte(`{"address":"0xabc"}`))
	require.EqualError(t, err, "message type is missing")

	_, err = Decode([]byte(`{"type":"lookup"}`))
	require.EqualError(t, err, "address is missing")

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestDecode_FailureMessage(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"lookup","address":"0xabc","from_block":0,"to_block":100,"outcome":"upstream_failure","error_kind":"timeout"}`))
	require.NoError(t, err)
	require.Equal(t, OutcomeUpstreamFailure, msg.Outcome)
	require.Equal(t, "timeout", msg.ErrorKind)
	require.Equal(t, int64(100), msg.ToBlock)
}
