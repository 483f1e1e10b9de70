package web3

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
)

var (
	testModule     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testSettlement = common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41")
	testWNT        = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func fakeModule(f *fakeClient) {
	f.handle(testModule, feeModuleABI, "receiver", returns(common.HexToAddress("0x01")))
	f.handle(testModule, feeModuleABI, "targetSafe", returns(common.HexToAddress("0x02")))
	f.handle(testModule, feeModuleABI, "wrappedNativeToken", returns(testWNT))
	f.handle(testModule, feeModuleABI, "keeper", returns(common.HexToAddress("0x03")))
	f.handle(testModule, feeModuleABI, "settlement", returns(testSettlement))
	f.handle(testModule, feeModuleABI, "vaultRelayer", returns(common.HexToAddress("0x04")))
	f.handle(testModule, feeModuleABI, "appData", returns([32]byte{0xaa, 0xbb}))
	f.handle(testModule, feeModuleABI, "minOut", returns(big.NewInt(5e15)))
	f.handle(testModule, feeModuleABI, "nextValidTo", returns(uint32(1_700_000_000)))
}

func TestModuleInfo(t *testing.T) {
	c := qt.New(t)
	f := newFakeClient()
	fakeModule(f)
	n := NewWithClient(f, 1)

	info, err := n.ModuleInfo(context.Background(), testModule)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Address, qt.Equals, testModule)
	c.Assert(info.Receiver, qt.Equals, common.HexToAddress("0x01"))
	c.Assert(info.TargetSafe, qt.Equals, common.HexToAddress("0x02"))
	c.Assert(info.WrappedNativeToken, qt.Equals, testWNT)
	c.Assert(info.Keeper, qt.Equals, common.HexToAddress("0x03"))
	c.Assert(info.Settlement, qt.Equals, testSettlement)
	c.Assert(info.VaultRelayer, qt.Equals, common.HexToAddress("0x04"))
	c.Assert(info.AppData, qt.Equals, common.Hash{0xaa, 0xbb})
	c.Assert(info.MinOut.Int64(), qt.Equals, int64(5e15))

	validTo, err := n.NextValidTo(context.Background(), testModule)
	c.Assert(err, qt.IsNil)
	c.Assert(validTo, qt.Equals, uint32(1_700_000_000))
}

func TestModuleInfoReverts(t *testing.T) {
	c := qt.New(t)
	f := newFakeClient()
	fakeModule(f)
	f.handle(testModule, feeModuleABI, "keeper", reverts("no keeper"))
	n := NewWithClient(f, 1)

	_, err := n.ModuleInfo(context.Background(), testModule)
	c.Assert(err, qt.ErrorMatches, "keeper call failed: .*no keeper")
}

func TestDripCalldata(t *testing.T) {
	c := qt.New(t)
	approve := []common.Address{common.HexToAddress("0x11")}
	swaps := []Swap{
		{Token: common.HexToAddress("0x11"), SellAmount: big.NewInt(100), BuyAmount: big.NewInt(90)},
		{Token: common.HexToAddress("0x22"), SellAmount: big.NewInt(200), BuyAmount: big.NewInt(180)},
	}
	data, err := DripCalldata(approve, swaps)
	c.Assert(err, qt.IsNil)

	method := feeModuleABI.Methods["drip"]
	c.Assert(data[:4], qt.DeepEquals, method.ID)
	args, err := method.Inputs.Unpack(data[4:])
	c.Assert(err, qt.IsNil)
	c.Assert(args[0], qt.DeepEquals, approve)

	decoded := *abi.ConvertType(args[1], new([]Swap)).(*[]Swap)
	c.Assert(decoded, qt.HasLen, 2)
	c.Assert(decoded[1].Token, qt.Equals, common.HexToAddress("0x22"))
	c.Assert(decoded[1].SellAmount.Int64(), qt.Equals, int64(200))
	c.Assert(decoded[1].BuyAmount.Int64(), qt.Equals, int64(180))
}

func TestDripCalldataEmptyLists(t *testing.T) {
	c := qt.New(t)
	data, err := DripCalldata(nil, nil)
	c.Assert(err, qt.IsNil)
	args, err := feeModuleABI.Methods["drip"].Inputs.Unpack(data[4:])
	c.Assert(err, qt.IsNil)
	c.Assert(args[0], qt.HasLen, 0)
	c.Assert(args[1], qt.HasLen, 0)
}
