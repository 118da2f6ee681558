package eth

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestReceiptBlockID(t *testing.T) {
	hash := common.HexToHash("0xabcd")
	id := ReceiptBlockID(&types.Receipt{BlockHash: hash, BlockNumber: big.NewInt(42)})
	require.Equal(t, BlockID{Hash: hash, Number: 42}, id)
	require.Equal(t, BlockID{}, ReceiptBlockID(nil))
}

func TestParentIDSaturates(t *testing.T) {
	ref := BlockRef{Hash: common.HexToHash("0x01"), Number: 0, ParentHash: common.Hash{}}
	require.Equal(t, uint64(0), ref.ParentID().Number)

	header := &types.Header{Number: big.NewInt(7), ParentHash: common.HexToHash("0x06"), Time: 100}
	ref = HeaderBlockRef(header)
	require.Equal(t, header.Hash(), ref.Hash)
	require.Equal(t, BlockID{Hash: common.HexToHash("0x06"), Number: 6}, ref.ParentID())
}
