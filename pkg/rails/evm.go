package rails

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/railhq/railpay/pkg/types"
)

// erc20TransferSelector is the 4-byte selector of transfer(address,uint256).
var erc20TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// ERC20TransferCalldata packs a transfer(to, amount) call.
func ERC20TransferCalldata(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// BuildTransfer prepares the transaction that moves the required token amount
// to the order's intent address: a native value transfer, or an ERC-20
// transfer call with zero value.
func BuildTransfer(token types.Token, intentAddress string, amount *big.Int) (EVMTransaction, error) {
	if !common.IsHexAddress(intentAddress) {
		return EVMTransaction{}, fmt.Errorf("invalid intent address %q", intentAddress)
	}
	intent := common.HexToAddress(intentAddress)

	if token.IsNative() {
		return EVMTransaction{
			To:      intent,
			Value:   new(big.Int).Set(amount),
			ChainID: token.ChainID,
		}, nil
	}

	if !common.IsHexAddress(token.Address) {
		return EVMTransaction{}, fmt.Errorf("invalid token address %q", token.Address)
	}
	return EVMTransaction{
		To:      common.HexToAddress(token.Address),
		Value:   new(big.Int),
		Data:    ERC20TransferCalldata(intent, amount),
		ChainID: token.ChainID,
	}, nil
}
