package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestEnvelopeWireFormat(t *testing.T) {
	id := uuid.MustParse("6f1c1b5e-8a0e-4c39-9f57-0d4f8f1b2a10")
	env, err := NewEnvelope(TypeUpdateRoster, UpdateRoster{
		Keys: []ConnKey{{Name: "alice", ID: id}},
	}, testTime)
	require.NoError(t, err)

	raw, err := Marshal(env)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"version": 1,
		"msg_type": "update_roster",
		"data": {"keys": [{"name": "alice", "id": "6f1c1b5e-8a0e-4c39-9f57-0d4f8f1b2a10"}]},
		"timestamp": "2024-06-01T12:00:00Z"
	}`, string(raw))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeJoinTable, JoinTable{TableID: "t1"}, testTime)
	require.NoError(t, err)
	raw, err := Marshal(env)
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeJoinTable, decoded.Type)
	assert.True(t, testTime.Equal(decoded.Timestamp))

	var join JoinTable
	require.NoError(t, decoded.Decode(&join))
	assert.Equal(t, "t1", join.TableID)
}

func TestEnvelopeWithoutData(t *testing.T) {
	env, err := NewEnvelope(TypeHit, nil, testTime)
	require.NoError(t, err)
	raw, err := Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)

	var join JoinTable
	assert.Error(t, env.Decode(&join))
}

func TestUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{name: "unknown type", raw: `{"version":1,"msg_type":"fold"}`, err: ErrUnknownMessageType},
		{name: "old version", raw: `{"version":0,"msg_type":"hit"}`, err: ErrUnsupportedVersion},
		{name: "future version", raw: `{"version":2,"msg_type":"hit"}`, err: ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestDataMessageOmitsEmptyRouting(t *testing.T) {
	raw, err := json.Marshal(Data{Payload: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":"hello"}`, string(raw))
}

func TestConnKeyString(t *testing.T) {
	id := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	assert.Equal(t, "bob#00000000-0000-4000-8000-000000000001", ConnKey{Name: "bob", ID: id}.String())
}
