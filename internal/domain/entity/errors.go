package entity

import "errors"

var (
	// Mission fatal.
	ErrObservation = errors.New("observation failure")
	ErrDecision    = errors.New("decision failure")

	// Action local: recorded in history, the mission continues.
	ErrTargetNotFound  = errors.New("target not found")
	ErrActionExecution = errors.New("action execution failure")

	ErrNavigation        = errors.New("navigation failed")
	ErrInvalidAction     = errors.New("invalid action")
	ErrBrowser           = errors.New("browser failure")
	ErrElementNotFound   = errors.New("element not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrRetriesExhausted  = errors.New("retries exhausted")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionFinished   = errors.New("session already finished")
	ErrOracleNotSet      = errors.New("decision oracle is not configured")
)

func IsMissionFatal(err error) bool {
	return errors.Is(err, ErrObservation) || errors.Is(err, ErrDecision)
}

func IsActionLocal(err error) bool {
	return errors.Is(err, ErrTargetNotFound) || errors.Is(err, ErrActionExecution)
}
