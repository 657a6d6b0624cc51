package dto

// NotificationListQuery filters GET /notifications.
type NotificationListQuery struct {
	UnreadOnly bool `form:"unread_only"`
	Limit      int  `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset     int  `form:"offset" binding:"omitempty,min=0"`
}

// Page returns limit and offset with defaults applied.
func (q NotificationListQuery) Page() (int, int) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	return limit, q.Offset
}
