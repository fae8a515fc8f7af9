// Package ledger implements the balance carry-forward calculation for monthly
// payment records and the property health score heuristic. Both are pure
// functions over record slices already loaded by the caller: the caller owns
// fetching, serialization of concurrent edits, and persisting the single
// mutation this package may request.
package ledger

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dlnapm/pmpr/internal/models"
)

// RecordKey identifies a payment record within one property's ledger.
type RecordKey struct {
	Year  int
	Month int
}

// Before reports whether k sorts strictly before other.
func (k RecordKey) Before(other RecordKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// BillAdjustment is a mutation request for the caller to persist: set the
// identified record's rent bill to NewRentBill, leaving its paid amount and
// utility lines untouched.
type BillAdjustment struct {
	RecordID    primitive.ObjectID
	NewRentBill float64
}

// sortRecords orders records ascending by (year, month) without mutating the
// caller's slice.
func sortRecords(records []models.PaymentRecord) []models.PaymentRecord {
	sorted := make([]models.PaymentRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a := RecordKey{sorted[i].Year, sorted[i].Month}
		b := RecordKey{sorted[j].Year, sorted[j].Month}
		return a.Before(b)
	})
	return sorted
}

// RecalculateFollowingRecord computes the correct rent bill for the record
// that follows the changed one, carrying forward the unpaid remainder.
//
// records must be the property's full post-mutation record set: for an add or
// edit it contains the changed record, for a deletion it no longer does. The
// "following" record is the nearest later record by existence, not the
// calendar-adjacent month, so a balance can jump across skipped months.
//
// It returns the adjustment to persist and true, or false when nothing needs
// updating: no following record, the bill is already correct, or (add/edit)
// the changed record is not in the set. Missing data is a silent no-op by
// design; the bill is a derived field and can always be recomputed from the
// base rent and the preceding record's shortfall.
func RecalculateFollowingRecord(changed RecordKey, records []models.PaymentRecord, baseRent float64, isDeletion bool) (BillAdjustment, bool) {
	sorted := sortRecords(records)

	// Locate the base index: for an add/edit it is the changed record's own
	// position; for a deletion it is the record now immediately preceding the
	// gap where the deleted record used to sit.
	baseIdx := -1
	if isDeletion {
		// First index at or after the deleted key, minus one.
		i := sort.Search(len(sorted), func(i int) bool {
			k := RecordKey{sorted[i].Year, sorted[i].Month}
			return !k.Before(changed)
		})
		baseIdx = i - 1
	} else {
		found := false
		for i := range sorted {
			if sorted[i].Year == changed.Year && sorted[i].Month == changed.Month {
				baseIdx = i
				found = true
				break
			}
		}
		if !found {
			return BillAdjustment{}, false
		}
	}

	carried := 0.0
	if baseIdx >= 0 {
		carried = sorted[baseIdx].Shortfall()
	}

	nextIdx := baseIdx + 1
	if nextIdx >= len(sorted) {
		// No future record to adjust. The carried balance is applied only
		// when/if a later month's record is created (see InitialBill).
		return BillAdjustment{}, false
	}
	next := sorted[nextIdx]

	newBill := baseRent + carried
	if newBill == next.RentBill {
		return BillAdjustment{}, false
	}
	return BillAdjustment{RecordID: next.ID, NewRentBill: newBill}, true
}

// InitialBill computes the rent bill for a record being created at key:
// base rent plus the shortfall of the nearest existing earlier record.
// records is the property's record set before the insertion.
func InitialBill(key RecordKey, records []models.PaymentRecord, baseRent float64) float64 {
	sorted := sortRecords(records)
	carried := 0.0
	for i := len(sorted) - 1; i >= 0; i-- {
		k := RecordKey{sorted[i].Year, sorted[i].Month}
		if k.Before(key) {
			carried = sorted[i].Shortfall()
			break
		}
	}
	return baseRent + carried
}

// Health score parameters. All penalties are flat-rate per incident
// regardless of the amount involved; a $1 shortfall and a $10,000 shortfall
// both cost rentPenalty points.
const (
	neutralScore   = 75
	startScore     = 100
	rentPenalty    = 10
	utilityPenalty = 2
	repairPenalty  = 5
)

// ComputeHealthScore summarizes a property's payment compliance and repair
// backlog as an integer in [0, 100]. A property with no payment history
// scores a fixed neutral 75. The record for the current (still open) month,
// derived from now, is skipped.
func ComputeHealthScore(payments []models.PaymentRecord, repairs []models.Repair, now time.Time) int {
	if len(payments) == 0 {
		return neutralScore
	}

	current := RecordKey{Year: now.Year(), Month: int(now.Month())}
	score := startScore
	for i := range payments {
		k := RecordKey{payments[i].Year, payments[i].Month}
		if !k.Before(current) {
			continue
		}
		if payments[i].RentPaid < payments[i].RentBill {
			score -= rentPenalty
		}
		for _, u := range payments[i].Utilities {
			if u.Paid < u.Bill {
				score -= utilityPenalty
			}
		}
	}

	for i := range repairs {
		if repairs[i].Open() {
			score -= repairPenalty
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
