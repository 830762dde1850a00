package domain

import "errors"

var (
	ErrSourceNotFound      = errors.New("source not found")
	ErrTransport           = errors.New("content source transport failure")
	ErrPersistenceDisabled = errors.New("delta harvesting requires persistence")
	ErrUnknownTier         = errors.New("unknown schedule tier")
	ErrUnknownGroup        = errors.New("unknown source group")
)
