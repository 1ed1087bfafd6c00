package botflow

import "errors"

var (
	ErrBotNotFound    = errors.New("botflow: bot not found")
	ErrNodeNotFound   = errors.New("botflow: node not found")
	ErrBackupNotFound = errors.New("botflow: backup not found")
	ErrInvalidPayload = errors.New("botflow: invalid graph payload")
)
