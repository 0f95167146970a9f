package service

import "errors"

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionNotActive      = errors.New("session is no longer active")
	ErrSessionChanged        = errors.New("session is no longer active")
	ErrQuestionNotInSession  = errors.New("question not found in session")
	ErrNoPendingFollowUp     = errors.New("no pending follow-up for this question")
	ErrFollowUpPending       = errors.New("a follow-up answer is pending for this question")
	ErrNoCurrentQuestion     = errors.New("no current question to skip")
	ErrReportNotReady        = errors.New("interview not yet completed")
	ErrNoMoreQuestions       = errors.New("no more questions, complete the session")
	ErrTimeLimitExceeded     = errors.New("time limit exceeded, session closed")
	ErrForbidden             = errors.New("session belongs to another candidate")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrAlreadyAnswered       = errors.New("question already answered in this session")
	ErrInterviewComplete     = errors.New("interview is complete, view the report")
	ErrUnknownIntegrityEvent = errors.New("unknown integrity event type")
)
