package domain

import "errors"

var (
	// ErrNotConfigured means the ComputerEase base URL or API key is
	// missing; REST import cannot run.
	ErrNotConfigured = errors.New("computerease_not_configured")

	// ErrEmptyCSV means the CSV body had no header row.
	ErrEmptyCSV = errors.New("empty_csv")
)
