package domain

type NoticeAction string

const (
	NoticeAdd    NoticeAction = "add"
	NoticeUpdate NoticeAction = "update"
	NoticeCancel NoticeAction = "cancel"
)

// RedirectState is the delegate and window of an entry as seen by notification planning.
type RedirectState struct {
	Delegate *UserRef
	Interval Interval
}

type RedirectNotice struct {
	Action   NoticeAction
	To       UserRef
	Dates    string
	OldDates string
}

const noticeDateLayout = "1/2/2006"

// FormatDateRange renders an interval the way notices present it, e.g. "3/10/2024 - 3/12/2024".
func FormatDateRange(i Interval) string {
	return i.Start.UTC().Format(noticeDateLayout) + " - " + i.End.UTC().Format(noticeDateLayout)
}

// PlanRedirectNotices diffs the previous and next redirect of an entry.
// A changed delegate yields a cancel for the old one and an add for the new one;
// an unchanged delegate yields an update only when the formatted dates differ.
func PlanRedirectNotices(prev *RedirectState, next RedirectState) []RedirectNotice {
	var prevDelegate *UserRef
	var prevDates string
	if prev != nil {
		prevDelegate = prev.Delegate
		prevDates = FormatDateRange(prev.Interval)
	}
	nextDates := FormatDateRange(next.Interval)

	var notices []RedirectNotice
	if prevDelegate != nil && (next.Delegate == nil || next.Delegate.ID != prevDelegate.ID) {
		notices = append(notices, RedirectNotice{
			Action: NoticeCancel,
			To:     *prevDelegate,
			Dates:  prevDates,
		})
	}

	if next.Delegate == nil {
		return notices
	}

	if prevDelegate != nil && prevDelegate.ID == next.Delegate.ID {
		if prevDates != nextDates {
			notices = append(notices, RedirectNotice{
				Action:   NoticeUpdate,
				To:       *next.Delegate,
				Dates:    nextDates,
				OldDates: prevDates,
			})
		}
		return notices
	}

	return append(notices, RedirectNotice{
		Action: NoticeAdd,
		To:     *next.Delegate,
		Dates:  nextDates,
	})
}
