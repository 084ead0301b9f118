// Package quota implements the currency-denominated usage ledger that backs
// the conversion gate.
//
// The ledger is one JSON document rewritten in full on every mutation. After
// every write remaining_quota equals total_quota minus used_quota exactly;
// amounts are decimals, never floats. Debits always apply in full, so the
// balance may go negative. Whether a new job may start is a separate,
// read-only Check.
package quota
