package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/id"
	"clinicrx/internal/domain/audit"
)

func TestAuditService_EncodeCompressesLargePayloads(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	small := audit.Entry{EntityType: "PurchaseOrder", EntityID: id.New(), Action: audit.ActionReceive, Payload: map[string]int{"lines": 2}}
	row, err := s.encode(small)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, row.CompressionAlgo)
	assert.JSONEq(t, `{"lines":2}`, string(row.Changes))
	assert.False(t, id.IsNil(row.ID))

	big := small
	big.Payload = map[string]string{"notes": strings.Repeat("paracetamol 500mg ", 1000)}
	row, err = s.encode(big)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, row.CompressionAlgo)
	assert.Nil(t, row.Changes)
	assert.NotEmpty(t, row.ChangesCompressed)

	back, err := s.decode(row)
	require.NoError(t, err)
	raw, ok := back.Payload.(json.RawMessage)
	require.True(t, ok)
	want, _ := json.Marshal(big.Payload)
	assert.JSONEq(t, string(want), string(raw))
}
