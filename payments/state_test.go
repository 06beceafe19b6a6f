package payments

import (
	"errors"
	"testing"

	"github.com/tradege/marketedgepros-sub001/models"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{models.PaymentStatusPending, models.PaymentStatusCompleted},
		{models.PaymentStatusPending, models.PaymentStatusFailed},
		{models.PaymentStatusCompleted, models.PaymentStatusRefunded},
	}
	for _, edge := range allowed {
		if !CanTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be allowed", edge[0], edge[1])
		}
	}

	denied := [][2]string{
		{models.PaymentStatusPending, models.PaymentStatusRefunded},
		{models.PaymentStatusCompleted, models.PaymentStatusPending},
		{models.PaymentStatusCompleted, models.PaymentStatusFailed},
		{models.PaymentStatusFailed, models.PaymentStatusCompleted},
		{models.PaymentStatusFailed, models.PaymentStatusPending},
		{models.PaymentStatusRefunded, models.PaymentStatusCompleted},
		{models.PaymentStatusPending, models.PaymentStatusPending},
		{"bogus", models.PaymentStatusCompleted},
	}
	for _, edge := range denied {
		if CanTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be denied", edge[0], edge[1])
		}
	}
}

func TestTransition(t *testing.T) {
	got, err := Transition(models.PaymentStatusPending, models.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.PaymentStatusCompleted {
		t.Errorf("Transition returned %q", got)
	}

	_, err = Transition(models.PaymentStatusFailed, models.PaymentStatusCompleted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("want ErrInvalidTransition, got %v", err)
	}
}

// Cash payments and free grants both wait for manual review; card payments
// settle from the gateway webhook and never enter the queue.
func TestAwaitingApproval(t *testing.T) {
	cases := []struct {
		method, approval string
		want             bool
	}{
		{models.PaymentMethodCash, models.ApprovalStatusPending, true},
		{models.PaymentMethodFree, models.ApprovalStatusPending, true},
		{models.PaymentMethodCard, models.ApprovalStatusPending, false},
		{models.PaymentMethodCash, models.ApprovalStatusApproved, false},
		{models.PaymentMethodFree, models.ApprovalStatusApproved, false},
		{models.PaymentMethodFree, models.ApprovalStatusRejected, false},
	}
	for _, tc := range cases {
		p := &models.Payment{Method: tc.method, ApprovalStatus: tc.approval}
		if got := awaitingApproval(p); got != tc.want {
			t.Errorf("awaitingApproval(%s, %s) = %v, want %v", tc.method, tc.approval, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(models.PaymentStatusPending) || IsTerminal(models.PaymentStatusCompleted) {
		t.Error("pending and completed are not terminal")
	}
	if !IsTerminal(models.PaymentStatusFailed) || !IsTerminal(models.PaymentStatusRefunded) {
		t.Error("failed and refunded are terminal")
	}
}
