package purchase_request

// StageEntry records a line's status at one stage.
type StageEntry struct {
	Seq     int        `json:"seq"`
	Status  LineStatus `json:"status"`
	Name    string     `json:"name"`
	Message string     `json:"message"`
}

// StageLog is the ordered per-line stage log. Operations return a new log and
// never modify the receiver.
type StageLog []StageEntry

func (l StageLog) clone() StageLog {
	if l == nil {
		return nil
	}
	out := make(StageLog, len(l))
	copy(out, l)
	return out
}

// Last returns the latest entry.
func (l StageLog) Last() (StageEntry, bool) {
	if len(l) == 0 {
		return StageEntry{}, false
	}
	return l[len(l)-1], true
}

// LastStatus returns the latest entry status or empty string.
func (l StageLog) LastStatus() LineStatus {
	e, _ := l.Last()
	return e.Status
}

// Append adds an entry; Seq continues from the previous entry.
func (l StageLog) Append(status LineStatus, stage, message string) StageLog {
	out := l.clone()
	return append(out, StageEntry{
		Seq:     len(l) + 1,
		Status:  status,
		Name:    stage,
		Message: message,
	})
}

// ReplaceLast overwrites status and message of the latest entry.
// An empty log gets a first entry instead.
func (l StageLog) ReplaceLast(status LineStatus, message string, stage string) StageLog {
	if len(l) == 0 {
		return l.Append(status, stage, message)
	}
	out := l.clone()
	last := &out[len(out)-1]
	last.Status = status
	last.Message = message
	return out
}

// PendingAt reports whether the latest entry is pending at stage.
func (l StageLog) PendingAt(stage string) bool {
	e, ok := l.Last()
	return ok && e.Status == LinePending && e.Name == stage
}

// MarkAll overwrites the status of every entry.
func (l StageLog) MarkAll(status LineStatus) StageLog {
	out := l.clone()
	for i := range out {
		out[i].Status = status
	}
	return out
}

// TruncateAfter rewinds the log to stage: the latest entry named stage is
// marked pending and everything after it is dropped. The second result is
// false, and the log unchanged, when no entry has that name.
func (l StageLog) TruncateAfter(stage string) (StageLog, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Name != stage {
			continue
		}
		out := make(StageLog, i+1)
		copy(out, l[:i+1])
		out[i].Status = LinePending
		return out, true
	}
	return l, false
}
