package fido

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildClientData(t *testing.T) {
	data, err := BuildClientData("Y2hhbGxlbmdl", "https://login.contoso.com")
	require.NoError(t, err)

	var cd map[string]any
	require.NoError(t, json.Unmarshal(data, &cd))
	assert.Equal(t, "webauthn.create", cd["type"])
	assert.Equal(t, "Y2hhbGxlbmdl", cd["challenge"])
	assert.Equal(t, "https://login.contoso.com", cd["origin"])
}

// cborBytes wraps raw bytes the way the device returns authData.
func cborBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	out, err := cbor.Marshal(b)
	require.NoError(t, err)
	return out
}

func TestBuildAttestationObjectPacked(t *testing.T) {
	authData := []byte{0x01, 0x02, 0x03, 0x04}
	res := &CredentialResult{
		AuthDataCBOR: cborBytes(t, authData),
		Format:       "packed",
		Sig:          []byte{0xAA, 0xBB},
		Cert:         []byte{0xCC, 0xDD},
		Algorithm:    -7,
	}

	out, err := BuildAttestationObject(res)
	require.NoError(t, err)

	var decoded struct {
		Fmt      string         `cbor:"fmt"`
		AttStmt  map[string]any `cbor:"attStmt"`
		AuthData []byte         `cbor:"authData"`
	}
	require.NoError(t, cbor.Unmarshal(out, &decoded))

	assert.Equal(t, "packed", decoded.Fmt)
	assert.Equal(t, authData, decoded.AuthData, "authData must not be double-encoded")
	assert.EqualValues(t, int64(-7), decoded.AttStmt["alg"])
	assert.Equal(t, []byte{0xAA, 0xBB}, decoded.AttStmt["sig"])
}

func TestBuildAttestationObjectFallsBackToNone(t *testing.T) {
	res := &CredentialResult{
		AuthDataCBOR: cborBytes(t, []byte{0x01}),
		Format:       "packed",
		// no certificate: cannot claim a packed statement
	}
	out, err := BuildAttestationObject(res)
	require.NoError(t, err)

	var decoded struct {
		Fmt     string         `cbor:"fmt"`
		AttStmt map[string]any `cbor:"attStmt"`
	}
	require.NoError(t, cbor.Unmarshal(out, &decoded))
	assert.Equal(t, "none", decoded.Fmt)
	assert.Empty(t, decoded.AttStmt)
}

func TestBase64URLDecodeHandlesPadding(t *testing.T) {
	raw, err := Base64URLDecode("YWJjZA")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), raw)

	padded, err := Base64URLDecode("YWJjZA==")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), padded)
}

func TestGeneratePIN(t *testing.T) {
	pin, err := GeneratePIN(DefaultPINLength)
	require.NoError(t, err)
	assert.Len(t, pin, 4)
	for _, c := range pin {
		assert.True(t, c >= '0' && c <= '9', "PIN digit %q out of range", c)
	}

	six, err := GeneratePIN(6)
	require.NoError(t, err)
	assert.Len(t, six, 6)

	fallback, err := GeneratePIN(0)
	require.NoError(t, err)
	assert.Len(t, fallback, DefaultPINLength)
}

func TestPickAlgorithmPrefersServerOrder(t *testing.T) {
	_, alg, err := pickAlgorithm([]int64{-257, -7})
	require.NoError(t, err)
	assert.EqualValues(t, -257, alg)

	_, alg, err = pickAlgorithm(nil)
	require.NoError(t, err)
	assert.EqualValues(t, -7, alg)

	_, _, err = pickAlgorithm([]int64{-35})
	assert.Error(t, err)
}
