package inapp

import "errors"

var (
	ErrHubClosed       = errors.New("in-app hub is closed")
	ErrRenderFailed    = errors.New("in-app message rendering failed")
	ErrAccountRequired = errors.New("in-app notifications require an account recipient")
)
