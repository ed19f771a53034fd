package selector

// UTXOEntry is one candidate unspent output.
type UTXOEntry struct {
	TxID        string
	Vout        uint32
	Amount      uint64
	AddressType string // p2pkh, p2sh, p2wpkh, p2wsh; drives per-input vsize
}

// VSizeEstimator returns the estimated virtual size, in vbytes, of a
// transaction spending n inputs of the given address types plus its
// fixed outputs. Supplied by internal/txfactory so the selector never
// needs to know script-construction details.
type VSizeEstimator func(inputs []UTXOEntry) int64

// SelectUTXOs orders utxos ascending by amount and accumulates them
// until their sum covers amount plus the fee for spending the
// accumulated set at feeRate (sat/vByte). The fee is recomputed on
// every iteration since vsize grows with each added input.
func SelectUTXOs(utxos []UTXOEntry, amount uint64, feeRate uint64, vsize VSizeEstimator) ([]UTXOEntry, uint64, error) {
	if amount == 0 {
		return nil, 0, nil
	}
	sorted := make([]UTXOEntry, len(utxos))
	copy(sorted, utxos)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Amount < sorted[j-1].Amount; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var selected []UTXOEntry
	var total uint64
	for _, u := range sorted {
		selected = append(selected, u)
		total += u.Amount

		fee := uint64(vsize(selected)) * feeRate
		if total >= amount+fee {
			return selected, total, nil
		}
	}

	var fee uint64
	if len(selected) > 0 {
		fee = uint64(vsize(selected)) * feeRate
	}
	return nil, 0, &ErrInsufficientFunds{Required: amount + fee, Available: total}
}
