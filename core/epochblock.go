package core

// EpochBlock (EB) checkpoints the MB chain and rotates the delegate set.
type EpochBlock struct {
	Hash                Hash                    `json:"hash"`
	EpochNumber         uint32                  `json:"epoch_number"`
	PrimaryDelegate     uint8                   `json:"primary_delegate"`
	Sequence            uint32                  `json:"sequence"`
	Previous            Hash                    `json:"previous"`
	MicroBlockTip       Tip                     `json:"micro_block_tip"`
	TotalRBs            uint64                  `json:"total_rbs"`
	TotalSupply         [16]byte                `json:"total_supply"`          // u128, big-endian
	TransactionFeePool  [16]byte                `json:"transaction_fee_pool"`  // u128, big-endian
	Delegates           [NumDelegates]Delegate  `json:"delegates"`
	IsExtension         bool                    `json:"is_extension"`
	AggSignature        []byte                  `json:"agg_signature"`
}
