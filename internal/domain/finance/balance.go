package finance

import "github.com/shopspring/decimal"

// AccountBalance is the signed sum owed by a student. Positive means the
// student owes money.
type AccountBalance struct {
	Total        decimal.Decimal
	Charges      decimal.Decimal
	Credits      decimal.Decimal
	Transactions int
}

// Balance folds transactions into an AccountBalance. Cancelled transactions
// are left out entirely.
func Balance(txs []*Transaction) AccountBalance {
	b := AccountBalance{
		Total:   decimal.Zero,
		Charges: decimal.Zero,
		Credits: decimal.Zero,
	}
	for _, t := range txs {
		if t.Status == StatusCancelled {
			continue
		}
		if t.Type.IsCharge() {
			b.Charges = b.Charges.Add(t.Amount)
		} else {
			b.Credits = b.Credits.Add(t.Amount)
		}
		b.Total = b.Total.Add(Contribution(t.Type, t.Amount))
		b.Transactions++
	}
	return b
}
