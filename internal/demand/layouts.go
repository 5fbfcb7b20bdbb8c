package demand

import (
	"math/big"

	"github.com/arkhai-io/alkahest-sub000/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

var (
	trustedOracleArgs = contracts.Tuple(
		contracts.Field("oracle", "address"),
		contracts.Field("data", "bytes"),
	)
	trustedPartyArgs = contracts.Tuple(
		contracts.Field("baseArbiter", "address"),
		contracts.Field("baseDemand", "bytes"),
		contracts.Field("creator", "address"),
	)
	baseArgs = contracts.Tuple(
		contracts.Field("baseArbiter", "address"),
		contracts.Field("baseDemand", "bytes"),
	)
	multiArgs = contracts.Tuple(
		contracts.Field("arbiters", "address[]"),
		contracts.Field("demands", "bytes[]"),
	)
	addressArgs   = contracts.Tuple(contracts.Field("value", "address"))
	hashArgs      = contracts.Tuple(contracts.Field("value", "bytes32"))
	boolArgs      = contracts.Tuple(contracts.Field("value", "bool"))
	timestampArgs = contracts.Tuple(contracts.Field("value", "uint64"))
	erc20Args     = contracts.Tuple(
		contracts.Field("token", "address"),
		contracts.Field("amount", "uint256"),
		contracts.Field("payee", "address"),
	)
	erc721Args = contracts.Tuple(
		contracts.Field("token", "address"),
		contracts.Field("tokenId", "uint256"),
		contracts.Field("payee", "address"),
	)
	erc1155Args = contracts.Tuple(
		contracts.Field("token", "address"),
		contracts.Field("tokenId", "uint256"),
		contracts.Field("amount", "uint256"),
		contracts.Field("payee", "address"),
	)
	nativeArgs = contracts.Tuple(
		contracts.Field("amount", "uint256"),
		contracts.Field("payee", "address"),
	)
)

// wire layouts; field order follows the tuples above

type trustedOracleData struct {
	Oracle common.Address `abi:"oracle"`
	Data   []byte         `abi:"data"`
}

type trustedPartyData struct {
	BaseArbiter common.Address `abi:"baseArbiter"`
	BaseDemand  []byte         `abi:"baseDemand"`
	Creator     common.Address `abi:"creator"`
}

type baseData struct {
	BaseArbiter common.Address `abi:"baseArbiter"`
	BaseDemand  []byte         `abi:"baseDemand"`
}

type multiData struct {
	Arbiters []common.Address `abi:"arbiters"`
	Demands  [][]byte         `abi:"demands"`
}

type addressData struct {
	Value common.Address `abi:"value"`
}

type hashData struct {
	Value common.Hash `abi:"value"`
}

type boolData struct {
	Value bool `abi:"value"`
}

type timestampData struct {
	Value uint64 `abi:"value"`
}

type erc20Data struct {
	Token  common.Address `abi:"token"`
	Amount *big.Int       `abi:"amount"`
	Payee  common.Address `abi:"payee"`
}

type erc721Data struct {
	Token   common.Address `abi:"token"`
	TokenID *big.Int       `abi:"tokenId"`
	Payee   common.Address `abi:"payee"`
}

type erc1155Data struct {
	Token   common.Address `abi:"token"`
	TokenID *big.Int       `abi:"tokenId"`
	Amount  *big.Int       `abi:"amount"`
	Payee   common.Address `abi:"payee"`
}

type nativeData struct {
	Amount *big.Int       `abi:"amount"`
	Payee  common.Address `abi:"payee"`
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
