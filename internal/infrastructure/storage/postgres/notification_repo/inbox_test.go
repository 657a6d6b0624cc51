package notification_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/domain/notification"
)

func TestStoreQuery_OneRowPerRecipient(t *testing.T) {
	in := notification.Intent{
		ToUserIDs:  []string{"u1", "u2"},
		FromUserID: "u0",
		Title:      "PR Submitted",
		Type:       notification.TypePurchaseRequest,
	}
	sql, args, err := storeQuery(in, time.Now()).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO notifications (id,to_user_id,from_user_id,title,message,type,metadata,is_read,created_at)")
	assert.Contains(t, sql, "($10,$11,$12,$13,$14,$15,$16,$17,$18)")
	assert.Len(t, args, 18)
	assert.Equal(t, "u2", args[10])
}

func TestListQuery(t *testing.T) {
	sql, args, err := listQuery("u1", true, 20, 40).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, to_user_id, from_user_id, title, message, type, metadata, is_read, created_at "+
			"FROM notifications WHERE to_user_id = $1 AND is_read = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 40",
		sql)
	assert.Equal(t, []any{"u1", false}, args)
}
