package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ModuleInfo holds the configuration read from a fee module contract.
type ModuleInfo struct {
	Address            common.Address
	Receiver           common.Address
	TargetSafe         common.Address
	WrappedNativeToken common.Address
	Keeper             common.Address
	Settlement         common.Address
	VaultRelayer       common.Address
	AppData            common.Hash
	MinOut             *big.Int
}

// Swap is one entry of the drip swap list.
type Swap struct {
	Token      common.Address
	SellAmount *big.Int
	BuyAmount  *big.Int
}

// ModuleInfo reads the configuration of the fee module at module.
func (n *Node) ModuleInfo(ctx context.Context, module common.Address) (*ModuleInfo, error) {
	info := &ModuleInfo{Address: module}
	addresses := []struct {
		method string
		dst    *common.Address
	}{
		{"receiver", &info.Receiver},
		{"targetSafe", &info.TargetSafe},
		{"wrappedNativeToken", &info.WrappedNativeToken},
		{"keeper", &info.Keeper},
		{"settlement", &info.Settlement},
		{"vaultRelayer", &info.VaultRelayer},
	}
	for _, a := range addresses {
		res, err := n.callView(ctx, module, feeModuleABI, a.method)
		if err != nil {
			return nil, err
		}
		addr, ok := res[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("unexpected %s type %T", a.method, res[0])
		}
		*a.dst = addr
	}

	res, err := n.callView(ctx, module, feeModuleABI, "appData")
	if err != nil {
		return nil, err
	}
	appData, ok := res[0].([32]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected appData type %T", res[0])
	}
	info.AppData = appData

	if res, err = n.callView(ctx, module, feeModuleABI, "minOut"); err != nil {
		return nil, err
	}
	if info.MinOut, ok = res[0].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected minOut type %T", res[0])
	}
	return info, nil
}

// NextValidTo returns the validTo timestamp the module expects in orders.
func (n *Node) NextValidTo(ctx context.Context, module common.Address) (uint32, error) {
	res, err := n.callView(ctx, module, feeModuleABI, "nextValidTo")
	if err != nil {
		return 0, err
	}
	validTo, ok := res[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected nextValidTo type %T", res[0])
	}
	return validTo, nil
}

// DripCalldata encodes a drip(approveTokens, swaps) call. Nil lists encode
// as empty arrays.
func DripCalldata(approveTokens []common.Address, swaps []Swap) ([]byte, error) {
	if approveTokens == nil {
		approveTokens = []common.Address{}
	}
	if swaps == nil {
		swaps = []Swap{}
	}
	data, err := feeModuleABI.Pack("drip", approveTokens, swaps)
	if err != nil {
		return nil, fmt.Errorf("failed to pack drip: %w", err)
	}
	return data, nil
}
