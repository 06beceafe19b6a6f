package withdrawal

import (
	"testing"

	"github.com/tradege/marketedgepros-sub001/models"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{models.WithdrawalStatusPending, models.WithdrawalStatusApproved},
		{models.WithdrawalStatusPending, models.WithdrawalStatusRejected},
		{models.WithdrawalStatusApproved, models.WithdrawalStatusProcessing},
		{models.WithdrawalStatusApproved, models.WithdrawalStatusRejected},
		{models.WithdrawalStatusProcessing, models.WithdrawalStatusCompleted},
		{models.WithdrawalStatusProcessing, models.WithdrawalStatusRejected},
	}
	for _, edge := range allowed {
		if !canTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be allowed", edge[0], edge[1])
		}
	}

	denied := [][2]string{
		{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing},
		{models.WithdrawalStatusPending, models.WithdrawalStatusCompleted},
		{models.WithdrawalStatusApproved, models.WithdrawalStatusCompleted},
		{models.WithdrawalStatusApproved, models.WithdrawalStatusPending},
		{models.WithdrawalStatusCompleted, models.WithdrawalStatusRejected},
		{models.WithdrawalStatusRejected, models.WithdrawalStatusPending},
		{models.WithdrawalStatusRejected, models.WithdrawalStatusApproved},
	}
	for _, edge := range denied {
		if canTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be denied", edge[0], edge[1])
		}
	}
}
