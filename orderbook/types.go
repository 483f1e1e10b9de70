package orderbook

import (
	"fmt"

	"github.com/cowdao-grants/cowfee/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OrderKind is the side of an order whose amount is fixed.
type OrderKind string

const (
	KindSell OrderKind = "sell"
	KindBuy  OrderKind = "buy"
)

// TokenBalance is where the sell tokens come from and the buy tokens go to.
type TokenBalance string

const BalanceERC20 TokenBalance = "erc20"

// SigningScheme of an order.
type SigningScheme string

const (
	SchemeEIP712  SigningScheme = "eip712"
	SchemeEthSign SigningScheme = "ethsign"
	SchemePreSign SigningScheme = "presign"
)

// QuoteRequest asks the price of selling SellAmountBeforeFee of SellToken
// for BuyToken.
type QuoteRequest struct {
	SellToken           common.Address  `json:"sellToken"`
	BuyToken            common.Address  `json:"buyToken"`
	From                common.Address  `json:"from"`
	Receiver            *common.Address `json:"receiver,omitempty"`
	Kind                OrderKind       `json:"kind"`
	SellAmountBeforeFee *types.BigInt   `json:"sellAmountBeforeFee"`
}

// Quote is the price returned by the order book.
type Quote struct {
	SellToken         common.Address `json:"sellToken"`
	BuyToken          common.Address `json:"buyToken"`
	SellAmount        *types.BigInt  `json:"sellAmount"`
	BuyAmount         *types.BigInt  `json:"buyAmount"`
	FeeAmount         *types.BigInt  `json:"feeAmount"`
	ValidTo           uint32         `json:"validTo"`
	Kind              OrderKind      `json:"kind"`
	PartiallyFillable bool           `json:"partiallyFillable"`
}

// QuoteResponse wraps a Quote.
type QuoteResponse struct {
	Quote      Quote          `json:"quote"`
	From       common.Address `json:"from"`
	Expiration string         `json:"expiration"`
	ID         *int64         `json:"id,omitempty"`
}

// OrderCreation is the body of a new order.
type OrderCreation struct {
	SellToken         common.Address `json:"sellToken"`
	BuyToken          common.Address `json:"buyToken"`
	Receiver          common.Address `json:"receiver"`
	SellAmount        *types.BigInt  `json:"sellAmount"`
	BuyAmount         *types.BigInt  `json:"buyAmount"`
	ValidTo           uint32         `json:"validTo"`
	AppData           string         `json:"appData"`
	AppDataHash       common.Hash    `json:"appDataHash"`
	FeeAmount         *types.BigInt  `json:"feeAmount"`
	Kind              OrderKind      `json:"kind"`
	PartiallyFillable bool           `json:"partiallyFillable"`
	SellTokenBalance  TokenBalance   `json:"sellTokenBalance"`
	BuyTokenBalance   TokenBalance   `json:"buyTokenBalance"`
	SigningScheme     SigningScheme  `json:"signingScheme"`
	Signature         hexutil.Bytes  `json:"signature"`
	From              common.Address `json:"from"`
}

// APIError is the error body returned by the order book on non-2xx
// responses.
type APIError struct {
	StatusCode  int    `json:"-"`
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.ErrorType == "" {
		return fmt.Sprintf("order book API returned %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("order book API returned %d: %s: %s", e.StatusCode, e.ErrorType, e.Description)
}
