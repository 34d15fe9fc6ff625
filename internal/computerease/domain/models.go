// Package domain defines the ComputerEase sync contract: external row
// shapes, the field and status mapping tables, and batch results.
package domain

import "context"

// SyncResult summarizes one import batch. Per-row failures land in
// Errors and never abort the batch.
type SyncResult struct {
	Total           int      `json:"total"`
	Created         int      `json:"created"`
	Updated         int      `json:"updated"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors"`
	DefaultedStatus []string `json:"defaulted_status,omitempty"`
}

// BackSyncResult reports a payment push to ComputerEase. Warning marks a
// failed push: the caller still gets success=true because the payment
// itself is already settled.
type BackSyncResult struct {
	Success bool   `json:"success"`
	Warning bool   `json:"warning,omitempty"`
	Message string `json:"message"`
}

// Service runs imports from ComputerEase and pushes payments back.
type Service interface {
	Import(ctx context.Context) (*SyncResult, error)
	ImportCSV(ctx context.Context, csvData string) (*SyncResult, error)
	BackSync(ctx context.Context, invoiceNumber string) (*BackSyncResult, error)
}
