package web3

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall3Address is the canonical Multicall3 deployment, available at the
// same address on every supported network.
var Multicall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// NativeTokenAddress is the placeholder the settlement uses for the native
// token in trades.
var NativeTokenAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

const feeModuleABIJSON = `[
	{"type":"function","name":"appData","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
	{"type":"function","name":"drip","inputs":[
		{"name":"_approveTokens","type":"address[]"},
		{"name":"_swapTokens","type":"tuple[]","components":[
			{"name":"token","type":"address"},
			{"name":"sellAmount","type":"uint256"},
			{"name":"buyAmount","type":"uint256"}
		]}
	],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"nextValidTo","inputs":[],"outputs":[{"name":"","type":"uint32"}],"stateMutability":"view"},
	{"type":"function","name":"receiver","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
	{"type":"function","name":"targetSafe","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
	{"type":"function","name":"wrappedNativeToken","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
	{"type":"function","name":"keeper","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
	{"type":"function","name":"settlement","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
	{"type":"function","name":"vaultRelayer","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
	{"type":"function","name":"minOut","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"},
	{"type":"function","name":"symbol","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"}
]`

const multicall3ABIJSON = `[
	{"type":"function","name":"tryAggregate","inputs":[
		{"name":"requireSuccess","type":"bool"},
		{"name":"calls","type":"tuple[]","components":[
			{"name":"target","type":"address"},
			{"name":"callData","type":"bytes"}
		]}
	],"outputs":[
		{"name":"returnData","type":"tuple[]","components":[
			{"name":"success","type":"bool"},
			{"name":"returnData","type":"bytes"}
		]}
	],"stateMutability":"view"}
]`

const settlementABIJSON = `[
	{"type":"event","name":"Trade","anonymous":false,"inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"sellToken","type":"address","indexed":false},
		{"name":"buyToken","type":"address","indexed":false},
		{"name":"sellAmount","type":"uint256","indexed":false},
		{"name":"buyAmount","type":"uint256","indexed":false},
		{"name":"feeAmount","type":"uint256","indexed":false},
		{"name":"orderUid","type":"bytes","indexed":false}
	]}
]`

var (
	feeModuleABI  = mustParseABI(feeModuleABIJSON)
	erc20ABI      = mustParseABI(erc20ABIJSON)
	multicall3ABI = mustParseABI(multicall3ABIJSON)
	settlementABI = mustParseABI(settlementABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
