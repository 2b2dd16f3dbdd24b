package casestore

import (
	"context"
	"errors"
	"time"
)

// Conventional status values. The status column is a free-form string;
// nothing at this layer rejects other values, and no transition graph
// is enforced. Workflow rules belong to the caller.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCleared   = "cleared"
)

// ErrNotFound is returned by write operations that reference a customer
// ID with no corresponding case. It is a caller-input outcome, distinct
// from storage failures.
var ErrNotFound = errors.New("case not found")

// ErrDuplicateCase is returned by AddCase when a case with the same
// customer ID already exists. The first case's values are retained.
var ErrDuplicateCase = errors.New("case already exists")

// Case is one customer record under fraud review.
type Case struct {
	CustomerID       string    `json:"customer_id"`
	Name             string    `json:"name"`
	CardLast4        string    `json:"card_last4"`
	SecurityQuestion string    `json:"security_question"`
	SecurityAnswer   string    `json:"security_answer"`
	Status           string    `json:"status"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Transaction is a suspicious payment event tied to one case. Amount and
// Timestamp are stored verbatim as text; this layer does not parse them.
type Transaction struct {
	ID         int64  `json:"id"`
	CustomerID string `json:"customer_id"`
	Merchant   string `json:"merchant"`
	Amount     string `json:"amount"`
	Location   string `json:"location"`
	Timestamp  string `json:"timestamp"`
}

// CaseDetail is a case together with its most recent transaction, the
// one with the highest insertion-order ID for that customer. Transaction
// is nil when the case has no transactions.
type CaseDetail struct {
	Case
	Transaction *Transaction `json:"transaction,omitempty"`
}

// CaseSummary is the reduced listing projection. It deliberately omits
// the security question/answer and notes so bulk views do not leak
// verification secrets.
type CaseSummary struct {
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	CardLast4  string    `json:"card_last4"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewCase carries the inputs for AddCase: the case fields plus the first
// suspicious transaction created atomically with it.
type NewCase struct {
	CustomerID       string
	Name             string
	CardLast4        string
	SecurityQuestion string
	SecurityAnswer   string
	Merchant         string
	Amount           string
	Location         string
	Timestamp        string
}

// Store defines the fraud-case persistence contract.
//
// Lookups degrade to absence: a storage failure during FindCaseByName,
// FindCaseByID, or ListAllCases is logged and presented to the caller as
// "not found" or an empty listing. Writes report: UpdateStatus and
// AddCase return ErrNotFound / ErrDuplicateCase for the expected
// non-exceptional outcomes and a wrapped error for storage failures.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error

	// Lookups
	FindCaseByName(ctx context.Context, name string) (*CaseDetail, bool)
	FindCaseByID(ctx context.Context, customerID string) (*CaseDetail, bool)
	ListAllCases(ctx context.Context) []CaseSummary

	// Writes
	AddCase(ctx context.Context, nc NewCase) error
	AddTransaction(ctx context.Context, tx Transaction) error
	UpdateStatus(ctx context.Context, customerID, status, note string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
