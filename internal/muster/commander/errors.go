package commander

import "errors"

var (
	ErrDebriefClosed    = errors.New("debrief is not open")
	ErrFeedbackDisabled = errors.New("feedback is collected elsewhere for this operation")
	ErrNotParticipant   = errors.New("only participants can give feedback")
	ErrEmptyFeedback    = errors.New("feedback is empty")
)
