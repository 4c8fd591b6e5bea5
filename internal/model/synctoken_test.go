package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncTokenRoundTrip(t *testing.T) {
	token := SyncToken{UIDValidity: 42, HighestModSeq: 100500, MaxUID: 7331}

	parsed, err := ParseSyncToken(token.String())
	require.NoError(t, err)
	assert.Equal(t, token, parsed)
}

func TestSyncTokenRoundTripZero(t *testing.T) {
	parsed, err := ParseSyncToken(SyncToken{}.String())
	require.NoError(t, err)
	assert.Equal(t, SyncToken{}, parsed)
}

func TestParseSyncTokenRejectsGarbage(t *testing.T) {
	for _, input := range []string{
		"",
		"not base64 at all!!!",
		"aGVsbG8",          // valid base64, wrong shape
		"Mjo xOjE6MQ",      // corrupt payload
		"MjoxOjE6MQ",       // version 2
		"MTp4OjE6MQ",       // non-numeric epoch
		"MToxOjE6MTox",     // too many fields
		"MTo0Mjo3Ojk5OQ==", // padded encoding
	} {
		_, err := ParseSyncToken(input)
		assert.Error(t, err, "input %q", input)
	}
}
