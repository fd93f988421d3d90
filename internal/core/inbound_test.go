package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInboundRegister(t *testing.T) {
	in, err := ParseInbound([]byte(`{"type":"register","identity":"alice","target":"bob","role":"sender"}`))
	require.NoError(t, err)
	assert.Equal(t, Register{Identity: "alice", Target: "bob", Role: domain.RoleSender}, in)

	in, err = ParseInbound([]byte(`{"type":"room-join","identity":"carol","room":"lobby","role":"client"}`))
	require.NoError(t, err)
	assert.Equal(t, Register{Identity: "carol", Room: "lobby", Role: domain.RoleClient}, in)
}

func TestParseInboundLegacyFields(t *testing.T) {
	in, err := ParseInbound([]byte(`{"type":"join","name":"alice","targetAddress":"bob","mode":"receiver"}`))
	require.NoError(t, err)
	assert.Equal(t, Register{Identity: "alice", Target: "bob", Role: domain.RoleReceiver}, in)
}

func TestParseInboundSignals(t *testing.T) {
	in, err := ParseInbound([]byte(`{"type":"offer","targetIdentity":"bob","payload":{"type":"offer","sdp":"v=0"}}`))
	require.NoError(t, err)
	sig, ok := in.(Signal)
	require.True(t, ok)
	assert.Equal(t, TypeOffer, sig.Kind)
	assert.Equal(t, domain.Identity("bob"), sig.TargetIdentity)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(sig.Payload))
	assert.False(t, sig.BestEffort())

	in, err = ParseInbound([]byte(`{"type":"ice-candidate","payload":{"candidate":"c"}}`))
	require.NoError(t, err)
	assert.True(t, in.(Signal).BestEffort())

	in, err = ParseInbound([]byte(`{"type":"data","room":"lobby","payload":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"hi"`), in.(Signal).Payload)

	in, err = ParseInbound([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, Ping{}, in)
}

func TestParseInboundErrors(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"type":`,
		"missing type":       `{"identity":"a"}`,
		"missing identity":   `{"type":"register","target":"b"}`,
		"no target nor room": `{"type":"register","identity":"a"}`,
		"bad role":           `{"type":"register","identity":"a","target":"b","role":"boss"}`,
		"offer no payload":   `{"type":"offer","targetIdentity":"b"}`,
		"null payload":       `{"type":"answer","payload":null}`,
		"data without room":  `{"type":"data","payload":"x"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInbound([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
			assert.False(t, errors.Is(err, ErrUnknownType))
		})
	}

	_, err := ParseInbound([]byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestErrorText(t *testing.T) {
	_, err := ParseInbound([]byte(`{"type":"teleport"}`))
	assert.Equal(t, "Unknown message type", ErrorText(err))

	_, err = ParseInbound([]byte(`{"type":"register","identity":"a"}`))
	assert.Equal(t, "Invalid message format: target or room required", ErrorText(err))

	assert.Equal(t, "Invalid message format: identity empty", ErrorText(domain.ErrIdentityEmpty))
	assert.Equal(t, "identity already registered: bob", ErrorText(fmt.Errorf("%w: bob", ErrDuplicateIdentity)))
	assert.Empty(t, ErrorText(nil))
}

func TestEnvelopeJSON(t *testing.T) {
	b, err := json.Marshal(PeerFound("bob", domain.RoleReceiver))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"peer-found","peerIdentity":"bob","peerRole":"receiver"}`, string(b))

	b, err = json.Marshal(Relayed(TypeOffer, "alice", "bob", "", json.RawMessage(`{"sdp":"x"}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer","senderIdentity":"alice","targetIdentity":"bob","payload":{"sdp":"x"}}`, string(b))
}
