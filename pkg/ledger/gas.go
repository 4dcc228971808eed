package ledger

// Fixed gas schedule, modelled on the EVM's intrinsic and SSTORE costs.
// Charges are accounting only; nothing is estimated or refunded.
const (
	GasTx             = 21000
	GasTxDataZero     = 4
	GasTxDataNonZero  = 16
	GasStorageSet     = 20000 // per 32-byte word written to an empty slot
	GasStorageReset   = 5000  // per 32-byte word overwriting a used slot
	storageWordLength = 32
)

func calldataGas(data []byte) uint64 {
	var gas uint64
	for _, b := range data {
		if b == 0 {
			gas += GasTxDataZero
		} else {
			gas += GasTxDataNonZero
		}
	}
	return gas
}

func storageGas(newValue []byte, slotWasEmpty bool) uint64 {
	words := uint64((len(newValue) + storageWordLength - 1) / storageWordLength)
	if words == 0 {
		words = 1
	}
	if slotWasEmpty {
		return words * GasStorageSet
	}
	return words * GasStorageReset
}
