// Package balance computes net balances and settlement suggestions for a
// group. The two calculations are pure functions over their inputs; the
// reactive layer in watcher.go recomputes them off the event bus.
package balance

import (
	"container/heap"
	"math"

	"github.com/splitmate-app/splitmate-sync/types"
)

// Epsilon is the threshold under which a balance is considered settled.
// Amounts are currency values with two meaningful decimals.
const Epsilon = 0.01

// Transfer is one suggested settling payment.
type Transfer struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// CalculateNetBalances maps each member to a signed amount: positive means
// the group owes the member, negative means the member owes the group. Every
// expense credits its payer by the full amount and each share debits its
// owner. Order-independent and deterministic.
func CalculateNetBalances(members []*types.GroupMember, expenses []*types.Expense, shares []*types.ExpenseShare) map[string]float64 {
	balances := make(map[string]float64, len(members))
	for _, member := range members {
		balances[member.UserID] = 0
	}

	live := make(map[string]bool, len(expenses))
	for _, expense := range expenses {
		if expense.IsDeleted() {
			continue
		}
		live[expense.ID] = true
		balances[expense.PaidBy] += expense.Amount
	}
	for _, share := range shares {
		if !live[share.ExpenseID] {
			continue
		}
		balances[share.UserID] -= share.Amount
	}
	return balances
}

// ApplySettlements folds recorded payments into the balances: a payment
// reduces the payer's debt and the payee's credit.
func ApplySettlements(balances map[string]float64, settlements []*types.Settlement) {
	for _, s := range settlements {
		balances[s.PayerID] += s.Amount
		balances[s.PayeeID] -= s.Amount
	}
}

// CalculateSettlements produces a small set of transfers that zeroes the
// balances, pairing the largest debtor with the largest creditor first.
// Balances of at least Epsilon in magnitude participate; anything smaller
// is considered settled. Output is deterministic: equal amounts break ties
// by member id.
func CalculateSettlements(balances map[string]float64) []Transfer {
	creditors := &partyHeap{}
	debtors := &partyHeap{}
	for id, amount := range balances {
		switch {
		case amount >= Epsilon:
			creditors.parties = append(creditors.parties, party{id: id, amount: amount})
		case amount <= -Epsilon:
			debtors.parties = append(debtors.parties, party{id: id, amount: -amount})
		}
	}
	heap.Init(creditors)
	heap.Init(debtors)

	var transfers []Transfer
	for creditors.Len() > 0 && debtors.Len() > 0 {
		creditor := heap.Pop(creditors).(party)
		debtor := heap.Pop(debtors).(party)

		amount := math.Min(creditor.amount, debtor.amount)
		transfers = append(transfers, Transfer{
			From:   debtor.id,
			To:     creditor.id,
			Amount: roundCents(amount),
		})

		if remaining := creditor.amount - amount; remaining >= Epsilon {
			heap.Push(creditors, party{id: creditor.id, amount: remaining})
		}
		if remaining := debtor.amount - amount; remaining >= Epsilon {
			heap.Push(debtors, party{id: debtor.id, amount: remaining})
		}
	}
	return transfers
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

type party struct {
	id     string
	amount float64
}

// partyHeap is a max-heap on amount with member id as the tie-break.
type partyHeap struct {
	parties []party
}

func (h *partyHeap) Len() int { return len(h.parties) }

func (h *partyHeap) Less(i, j int) bool {
	if h.parties[i].amount != h.parties[j].amount {
		return h.parties[i].amount > h.parties[j].amount
	}
	return h.parties[i].id < h.parties[j].id
}

func (h *partyHeap) Swap(i, j int) {
	h.parties[i], h.parties[j] = h.parties[j], h.parties[i]
}

func (h *partyHeap) Push(x interface{}) {
	h.parties = append(h.parties, x.(party))
}

func (h *partyHeap) Pop() interface{} {
	old := h.parties
	n := len(old)
	last := old[n-1]
	h.parties = old[:n-1]
	return last
}
