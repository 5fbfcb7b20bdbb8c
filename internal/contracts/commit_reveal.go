package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CommitRevealData mirrors CommitRevealObligation.ObligationData
type CommitRevealData struct {
	Payload []byte      `abi:"payload"`
	Salt    common.Hash `abi:"salt"`
	Schema  common.Hash `abi:"schema"`
}

// CommitmentRecord mirrors the per-hash commitment storage
type CommitmentRecord struct {
	CommitBlock     uint64
	CommitTimestamp uint64
	Committer       common.Address
}

// PackCommit encodes commit(commitment)
func PackCommit(commitment common.Hash) ([]byte, error) {
	return CommitRevealABI.Pack("commit", commitment)
}

// PackDoObligation encodes doObligation(data, refUID)
func PackDoObligation(data CommitRevealData, refUID common.Hash) ([]byte, error) {
	return CommitRevealABI.Pack("doObligation", data, refUID)
}

// PackReclaimBond encodes reclaimBond(obligationUid)
func PackReclaimBond(obligationUID common.Hash) ([]byte, error) {
	return CommitRevealABI.Pack("reclaimBond", obligationUID)
}

// PackSlashBond encodes slashBond(commitment)
func PackSlashBond(commitment common.Hash) ([]byte, error) {
	return CommitRevealABI.Pack("slashBond", commitment)
}

// PackCommitments encodes commitments(commitment)
func PackCommitments(commitment common.Hash) ([]byte, error) {
	return CommitRevealABI.Pack("commitments", commitment)
}

// UnpackCommitments decodes the commitments(...) return data
func UnpackCommitments(output []byte) (*CommitmentRecord, error) {
	values, err := CommitRevealABI.Methods["commitments"].Outputs.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack commitment: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("failed to unpack commitment: expected 3 values, got %d", len(values))
	}
	return &CommitmentRecord{
		CommitBlock:     values[0].(uint64),
		CommitTimestamp: values[1].(uint64),
		Committer:       values[2].(common.Address),
	}, nil
}

// PackCommitmentClaimed encodes commitmentClaimed(commitment)
func PackCommitmentClaimed(commitment common.Hash) ([]byte, error) {
	return CommitRevealABI.Pack("commitmentClaimed", commitment)
}

// PackNoArgs encodes a parameterless view such as bondAmount()
func PackNoArgs(method string) ([]byte, error) {
	return CommitRevealABI.Pack(method)
}

// UnpackBool decodes a single bool return value of the named commit-reveal method
func UnpackBool(method string, output []byte) (bool, error) {
	values, err := CommitRevealABI.Methods[method].Outputs.Unpack(output)
	if err != nil {
		return false, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values[0].(bool), nil
}

// UnpackUint256 decodes a single uint256 return value of the named commit-reveal method
func UnpackUint256(method string, output []byte) (*big.Int, error) {
	values, err := CommitRevealABI.Methods[method].Outputs.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values[0].(*big.Int), nil
}

// UnpackAddress decodes a single address return value of the named commit-reveal method
func UnpackAddress(method string, output []byte) (common.Address, error) {
	values, err := CommitRevealABI.Methods[method].Outputs.Unpack(output)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values[0].(common.Address), nil
}
