package orderbook

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/cowdao-grants/cowfee/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// DefaultSettlement is the settlement contract, deployed at the same address
// on every supported network. It is the EIP-712 verifying contract of orders.
var DefaultSettlement = common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41")

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": {
		{Name: "sellToken", Type: "address"},
		{Name: "buyToken", Type: "address"},
		{Name: "receiver", Type: "address"},
		{Name: "sellAmount", Type: "uint256"},
		{Name: "buyAmount", Type: "uint256"},
		{Name: "validTo", Type: "uint32"},
		{Name: "appData", Type: "bytes32"},
		{Name: "feeAmount", Type: "uint256"},
		{Name: "kind", Type: "string"},
		{Name: "partiallyFillable", Type: "bool"},
		{Name: "sellTokenBalance", Type: "string"},
		{Name: "buyTokenBalance", Type: "string"},
	},
}

// OrderUID returns the UID the order book assigns to order: its EIP-712
// digest, the owner address and validTo, 56 bytes hex encoded.
func OrderUID(order OrderCreation, chainID uint64, settlement common.Address) (string, error) {
	td := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Gnosis Protocol",
			Version:           "v2",
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(chainID)),
			VerifyingContract: settlement.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         order.SellToken.Hex(),
			"buyToken":          order.BuyToken.Hex(),
			"receiver":          order.Receiver.Hex(),
			"sellAmount":        amountOrZero(order.SellAmount),
			"buyAmount":         amountOrZero(order.BuyAmount),
			"validTo":           new(big.Int).SetUint64(uint64(order.ValidTo)),
			"appData":           order.AppDataHash,
			"feeAmount":         amountOrZero(order.FeeAmount),
			"kind":              string(order.Kind),
			"partiallyFillable": order.PartiallyFillable,
			"sellTokenBalance":  string(order.SellTokenBalance),
			"buyTokenBalance":   string(order.BuyTokenBalance),
		},
	}
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", fmt.Errorf("failed to hash order: %w", err)
	}
	uid := make([]byte, 0, 56)
	uid = append(uid, digest...)
	uid = append(uid, order.From.Bytes()...)
	uid = binary.BigEndian.AppendUint32(uid, order.ValidTo)
	return hexutil.Encode(uid), nil
}

func amountOrZero(a *types.BigInt) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return a.MathBigInt()
}
