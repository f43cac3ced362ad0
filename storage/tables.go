package storage

import "fmt"

// Table key prefixes, one per named LMDB table of spec.md §6.2 this
// core actually reads or writes. §6.2 additionally names receive,
// unchecked, address_ad, and p2p tables; those back delegate identity
// management and the p2p gossip transport, both named external
// collaborators (spec.md §1), so no component here ever keys into them
// and they are not modeled as dead schema.
const (
	tableBlock      = "request_block:" // per-delegate Request Blocks (RB)
	tableMicroBlock = "micro_block:"
	tableEpoch      = "epoch:"
	tableMicroTip   = "micro_block_tip:"
	tableEpochTip   = "epoch_tip:"
	tableBatchTip   = "batch_tip:" // + delegate_id, one of the 32 batch_tips tables
	tableRequest    = "request:"
)

func batchTipKey(delegateID uint8) string {
	return fmt.Sprintf("%s%02d", tableBatchTip, delegateID)
}
