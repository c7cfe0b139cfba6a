package model

// NoticeLevel classifies a one-line user-facing message.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeAdvisory
	NoticeError
)

// Notice is a one-line message for the user.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// CloseReason says why a stream session closed.
type CloseReason int

const (
	ClosedByEnd CloseReason = iota
	ClosedByError
	ClosedByStop
)

func (r CloseReason) String() string {
	switch r {
	case ClosedByEnd:
		return "end"
	case ClosedByError:
		return "error"
	default:
		return "stopped"
	}
}

// Display is the presentation layer that discovery components emit to.
// Implementations must not call back into the emitting component
// synchronously.
type Display interface {
	ShowPosting(p Posting)
	ShowProgress(p Progress)
	ShowNotice(n Notice)
	StreamClosed(reason CloseReason)
}
