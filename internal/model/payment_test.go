package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{name: "new to pending", from: PaymentStatusNew, to: PaymentStatusPending, want: true},
		{name: "new to error", from: PaymentStatusNew, to: PaymentStatusError, want: true},
		{name: "new straight to confirmed", from: PaymentStatusNew, to: PaymentStatusConfirmed, want: false},
		{name: "pending to confirmed", from: PaymentStatusPending, to: PaymentStatusConfirmed, want: true},
		{name: "pending to rejected", from: PaymentStatusPending, to: PaymentStatusRejected, want: true},
		{name: "pending to canceled", from: PaymentStatusPending, to: PaymentStatusCanceled, want: true},
		{name: "pending to refunded", from: PaymentStatusPending, to: PaymentStatusRefunded, want: true},
		{name: "pending back to new", from: PaymentStatusPending, to: PaymentStatusNew, want: false},
		{name: "confirmed to canceled", from: PaymentStatusConfirmed, to: PaymentStatusCanceled, want: true},
		{name: "confirmed to refunded", from: PaymentStatusConfirmed, to: PaymentStatusRefunded, want: true},
		{name: "confirmed back to pending", from: PaymentStatusConfirmed, to: PaymentStatusPending, want: false},
		{name: "canceled is terminal", from: PaymentStatusCanceled, to: PaymentStatusRefunded, want: false},
		{name: "rejected is terminal", from: PaymentStatusRejected, to: PaymentStatusPending, want: false},
		{name: "error is terminal", from: PaymentStatusError, to: PaymentStatusPending, want: false},
		{name: "refunded is terminal", from: PaymentStatusRefunded, to: PaymentStatusCanceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentStatusCanceled, PaymentStatusRejected, PaymentStatusRefunded, PaymentStatusError}
	for _, status := range terminal {
		assert.True(t, (&Payment{Status: status}).IsTerminal(), "%s must be terminal", status)
	}

	open := []PaymentStatus{PaymentStatusNew, PaymentStatusPending, PaymentStatusConfirmed}
	for _, status := range open {
		assert.False(t, (&Payment{Status: status}).IsTerminal(), "%s must not be terminal", status)
	}
}
