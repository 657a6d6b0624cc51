package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "procura/internal/core/context"
	"procura/internal/core/id"
	"procura/internal/domain/audit"
)

func TestAuditService_BuildRow_CompressesLargePayloads(t *testing.T) {
	svc, err := NewAuditService()
	require.NoError(t, err)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", Name: "Jane"})
	big := strings.Repeat("stage history ", 2000)

	row, err := svc.buildRow(ctx, audit.Entry{
		EntityType: "purchase_request",
		EntityID:   id.New(),
		Action:     audit.ActionApprove,
		Changes:    map[string]any{"lines": big},
	})
	require.NoError(t, err)

	assert.Equal(t, CompressionZstd, row.CompressionAlgo)
	assert.Nil(t, row.Changes)
	assert.Equal(t, "u-1", row.UserID)
	assert.Equal(t, "Jane", row.UserName)

	plain, err := svc.decoder.DecodeAll(row.ChangesCompressed, nil)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "stage history")
}

func TestAuditService_BuildRow_SmallPayloadStaysPlain(t *testing.T) {
	svc, err := NewAuditService()
	require.NoError(t, err)

	row, err := svc.buildRow(context.Background(), audit.Entry{
		EntityType: "purchase_request",
		EntityID:   id.New(),
		Action:     audit.ActionCreate,
		Changes:    map[string]any{"status": "draft"},
	})
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, row.CompressionAlgo)
	assert.JSONEq(t, `{"status":"draft"}`, string(row.Changes))
	assert.Empty(t, row.UserID)
}
