package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
	"github.com/JMarkstrom/entraYK/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nfcAAGUID   = "fa2b99dc-9e39-4257-8f92-4a30d23c4118" // YubiKey 5 NFC
	bogusAAGUID = "00000000-0000-0000-0000-000000000000"
)

type fakeDirectory struct {
	methods map[string][]graph.AuthMethod
	err     error
}

func (d *fakeDirectory) ListAuthMethods(_ context.Context, upn string) ([]graph.AuthMethod, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.methods[upn], nil
}

func fido2Method(name, aaguid string, created time.Time) graph.AuthMethod {
	return graph.AuthMethod{
		ODataType:       graph.AuthMethodTypeFido2,
		DisplayName:     name,
		AAGUID:          aaguid,
		CreatedDateTime: created,
	}
}

func testBuilder(t *testing.T, dir Directory) *Builder {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	return NewBuilder(dir, cat, nil)
}

func TestForUsersJoinsAgainstDeviceTable(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	dir := &fakeDirectory{methods: map[string][]graph.AuthMethod{
		"alice@contoso.com": {fido2Method("Office key", nfcAAGUID, created)},
	}}

	rows, err := testBuilder(t, dir).ForUsers(context.Background(), []string{"alice@contoso.com"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice@contoso.com", rows[0].UPN)
	assert.Equal(t, "Office key", rows[0].Nickname)
	assert.Equal(t, "5.1", rows[0].Firmware)
	assert.Equal(t, "L2", rows[0].Certification)
	assert.True(t, rows[0].HasCredential())
}

func TestForUsersEmptyIdentityGetsOneRow(t *testing.T) {
	dir := &fakeDirectory{methods: map[string][]graph.AuthMethod{}}

	rows, err := testBuilder(t, dir).ForUsers(context.Background(), []string{"bob@contoso.com"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{UPN: "bob@contoso.com"}, rows[0])
	assert.False(t, rows[0].HasCredential())
}

func TestForUsersSkipsNonFido2Methods(t *testing.T) {
	dir := &fakeDirectory{methods: map[string][]graph.AuthMethod{
		"alice@contoso.com": {
			{ODataType: "#microsoft.graph.phoneAuthenticationMethod", DisplayName: "+1 555 0100"},
			{ODataType: "#microsoft.graph.passwordAuthenticationMethod"},
		},
	}}

	rows, err := testBuilder(t, dir).ForUsers(context.Background(), []string{"alice@contoso.com"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].HasCredential(), "non-passkey methods collapse to the placeholder row")
}

func TestForUsersUnknownAAGUID(t *testing.T) {
	dir := &fakeDirectory{methods: map[string][]graph.AuthMethod{
		"alice@contoso.com": {fido2Method("Mystery key", bogusAAGUID, time.Now())},
	}}

	rows, err := testBuilder(t, dir).ForUsers(context.Background(), []string{"alice@contoso.com"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "unknown", rows[0].Firmware)
	assert.Equal(t, "unknown", rows[0].Certification)
}

func TestForUsersOrderingIsStable(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dir := &fakeDirectory{methods: map[string][]graph.AuthMethod{
		"alice@contoso.com": {
			fido2Method("Newer", nfcAAGUID, newer),
			fido2Method("Older", nfcAAGUID, older),
		},
		"bob@contoso.com": {fido2Method("Only", nfcAAGUID, newer)},
	}}

	rows, err := testBuilder(t, dir).ForUsers(context.Background(),
		[]string{"bob@contoso.com", "alice@contoso.com"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Identities keep the requested order; within one identity rows keep
	// the directory's response order.
	assert.Equal(t, "bob@contoso.com", rows[0].UPN)
	assert.Equal(t, "Newer", rows[1].Nickname)
	assert.Equal(t, "Older", rows[2].Nickname)
}

func TestForUsersDirectoryErrorAborts(t *testing.T) {
	dir := &fakeDirectory{err: fmt.Errorf("403 Forbidden")}

	rows, err := testBuilder(t, dir).ForUsers(context.Background(), []string{"alice@contoso.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alice@contoso.com")
	assert.Nil(t, rows)
}

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{UPN: "alice@contoso.com", Nickname: "Office key", Firmware: "5.1", Certification: "L2"},
		{UPN: "bob@contoso.com"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, []string{"UPN", "Nickname", "Firmware", "Certification"}, parsed[0])
	assert.Equal(t, []string{"alice@contoso.com", "Office key", "5.1", "L2"}, parsed[1])
	assert.Equal(t, []string{"bob@contoso.com", "", "", ""}, parsed[2])
}
