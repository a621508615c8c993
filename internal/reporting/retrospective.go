package reporting

import (
	"fmt"
	"sort"
	"time"

	"github.com/yourorg/payment-router/internal/types"
)

// Outcome buckets an attempt by what its status means for the payment.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

func outcomeOf(s types.AttemptStatus) Outcome {
	switch s.IntentStatus() {
	case types.IntentSucceeded, types.IntentPartiallyCaptured, types.IntentRequiresCapture:
		return OutcomeSucceeded
	case types.IntentFailed, types.IntentCancelled:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

// RetrospectiveReport summarizes a merchant's payment attempts.
type RetrospectiveReport struct {
	TotalAttempts     int `json:"total_attempts"`
	SucceededAttempts int `json:"succeeded_attempts"`
	FailedAttempts    int `json:"failed_attempts"`
	PendingAttempts   int `json:"pending_attempts"`
	// AmountByCurrency sums succeeded attempts in minor units.
	AmountByCurrency map[types.Currency]int64 `json:"amount_by_currency"`
	// DisplayAmounts is AmountByCurrency rendered in major units.
	DisplayAmounts map[types.Currency]string   `json:"display_amounts"`
	ErrorBreakdown map[string]int              `json:"error_breakdown"`
	ConnectorUsage map[string]int              `json:"connector_usage"`
	StatusCounts   map[types.AttemptStatus]int `json:"status_counts"`
	DateFrom       time.Time                   `json:"date_from"`
	DateTo         time.Time                   `json:"date_to"`
	Span           time.Duration               `json:"span"`
}

// TopErrors returns error codes ordered by frequency, ties broken by code.
func (r *RetrospectiveReport) TopErrors() []string {
	codes := make([]string, 0, len(r.ErrorBreakdown))
	for code := range r.ErrorBreakdown {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		ci, cj := r.ErrorBreakdown[codes[i]], r.ErrorBreakdown[codes[j]]
		if ci != cj {
			return ci > cj
		}
		return codes[i] < codes[j]
	})
	return codes
}

// RetrospectiveReporter generates retrospective reports from stored attempts.
type RetrospectiveReporter struct{}

func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

func newReport() *RetrospectiveReport {
	return &RetrospectiveReport{
		AmountByCurrency: make(map[types.Currency]int64),
		DisplayAmounts:   make(map[types.Currency]string),
		ErrorBreakdown:   make(map[string]int),
		ConnectorUsage:   make(map[string]int),
		StatusCounts:     make(map[types.AttemptStatus]int),
	}
}

// GenerateRetrospective analyzes attempts and produces a report. Nil entries
// are skipped. An attempt in a currency without a known exponent is an error.
func (rr *RetrospectiveReporter) GenerateRetrospective(attempts []*types.PaymentAttempt) (*RetrospectiveReport, error) {
	report := newReport()

	for _, a := range attempts {
		if a == nil {
			continue
		}
		report.TotalAttempts++
		report.StatusCounts[a.Status]++

		if report.DateFrom.IsZero() || a.CreatedAt.Before(report.DateFrom) {
			report.DateFrom = a.CreatedAt
		}
		if a.CreatedAt.After(report.DateTo) {
			report.DateTo = a.CreatedAt
		}
		if a.Connector != nil && *a.Connector != "" {
			report.ConnectorUsage[*a.Connector]++
		}

		switch outcomeOf(a.Status) {
		case OutcomeSucceeded:
			report.SucceededAttempts++
			report.AmountByCurrency[a.Currency] += a.Amount
		case OutcomeFailed:
			report.FailedAttempts++
			if a.ErrorCode != nil && *a.ErrorCode != "" {
				report.ErrorBreakdown[*a.ErrorCode]++
			}
		default:
			report.PendingAttempts++
		}
	}

	for currency, amount := range report.AmountByCurrency {
		display, err := types.ToStringMajorUnit(amount, currency)
		if err != nil {
			return nil, fmt.Errorf("rendering %s total: %w", currency, err)
		}
		report.DisplayAmounts[currency] = display
	}
	report.Span = report.DateTo.Sub(report.DateFrom)
	return report, nil
}
