package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymaintain/service-layer/internal/errors"
)

var stampKey = []byte("test-pipeline-signing-key")

func stampedAdvisory(t *testing.T, body map[string]any) json.RawMessage {
	t.Helper()
	raw, err := Stamp(stampKey, body)
	require.NoError(t, err)
	return raw
}

func TestVerifyAcceptsStampedAdvisory(t *testing.T) {
	raw := stampedAdvisory(t, map[string]any{
		"title":    "Inspect bleed valve",
		"severity": "high",
	})

	advisory, err := NewStampVerifier(stampKey).Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, StampIssuer, advisory.Pipeline)
	assert.JSONEq(t, string(raw), string(advisory.Raw))
}

func TestVerifyMissingStamp(t *testing.T) {
	_, err := NewStampVerifier(stampKey).Verify(json.RawMessage(`{"title":"no stamp"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodePolicyStamp))
	assert.Contains(t, err.Error(), "missing its policy stamp")
}

func TestVerifyRejectsNonJSON(t *testing.T) {
	_, err := NewStampVerifier(stampKey).Verify(json.RawMessage(`not json`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodePolicyStamp))
}

func TestVerifyRejectsForgedStamp(t *testing.T) {
	raw := stampedAdvisory(t, map[string]any{"title": "forged"})

	_, err := NewStampVerifier([]byte("some-other-key")).Verify(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodePolicyStamp))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	raw := stampedAdvisory(t, map[string]any{"title": "original", "severity": "low"})

	var advisory map[string]any
	require.NoError(t, json.Unmarshal(raw, &advisory))
	advisory["severity"] = "critical"
	tampered, err := json.Marshal(advisory)
	require.NoError(t, err)

	_, err = NewStampVerifier(stampKey).Verify(tampered)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodePolicyStamp))
	assert.Contains(t, err.Error(), "does not match advisory content")
}

func TestVerifyDeterministic(t *testing.T) {
	raw := stampedAdvisory(t, map[string]any{"title": "stable"})
	verifier := NewStampVerifier(stampKey)

	first, err := verifier.Verify(raw)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := verifier.Verify(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
