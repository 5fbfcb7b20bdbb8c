package contracts

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ArbitrationRequestedID is topic0 of ArbitrationRequested
	ArbitrationRequestedID = TrustedOracleArbiterABI.Events["ArbitrationRequested"].ID
	// ArbitrationMadeID is topic0 of ArbitrationMade
	ArbitrationMadeID = TrustedOracleArbiterABI.Events["ArbitrationMade"].ID
)

var (
	// ErrUnexpectedLog is returned when a log does not carry the expected event
	ErrUnexpectedLog = errors.New("unexpected log")
	// ErrUnexpectedCall is returned when calldata targets a different method
	ErrUnexpectedCall = errors.New("unexpected call")
)

// ArbitrationRequested is a decoded ArbitrationRequested log
type ArbitrationRequested struct {
	Obligation common.Hash
	Oracle     common.Address
	Demand     []byte
	Raw        types.Log
}

// ArbitrationMade is a decoded ArbitrationMade log
type ArbitrationMade struct {
	DecisionKey common.Hash
	Obligation  common.Hash
	Oracle      common.Address
	Decision    bool
	Raw         types.Log
}

// DecisionKey is the content-addressed handle of an oracle decision:
// keccak256(obligation ‖ demand).
func DecisionKey(obligation common.Hash, demand []byte) common.Hash {
	return crypto.Keccak256Hash(obligation.Bytes(), demand)
}

// AddressTopic left-pads an address into an indexed topic
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// TopicAddress recovers an address from an indexed topic
func TopicAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes())
}

// PackArbitrate encodes arbitrate(obligation, demand, decision)
func PackArbitrate(obligation common.Hash, demand []byte, decision bool) ([]byte, error) {
	return TrustedOracleArbiterABI.Pack("arbitrate", obligation, demand, decision)
}

// PackRequestArbitration encodes requestArbitration(obligation, oracle, demand)
func PackRequestArbitration(obligation common.Hash, oracle common.Address, demand []byte) ([]byte, error) {
	return TrustedOracleArbiterABI.Pack("requestArbitration", obligation, oracle, demand)
}

// ParseArbitrationRequested decodes an ArbitrationRequested log
func ParseArbitrationRequested(log types.Log) (*ArbitrationRequested, error) {
	if len(log.Topics) != 3 || log.Topics[0] != ArbitrationRequestedID {
		return nil, fmt.Errorf("%w: not ArbitrationRequested", ErrUnexpectedLog)
	}
	values, err := TrustedOracleArbiterABI.Events["ArbitrationRequested"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ArbitrationRequested: %w", err)
	}
	demand, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: ArbitrationRequested demand is %T", ErrUnexpectedLog, values[0])
	}
	return &ArbitrationRequested{
		Obligation: log.Topics[1],
		Oracle:     TopicAddress(log.Topics[2]),
		Demand:     demand,
		Raw:        log,
	}, nil
}

// ParseArbitrationMade decodes an ArbitrationMade log
func ParseArbitrationMade(log types.Log) (*ArbitrationMade, error) {
	if len(log.Topics) != 4 || log.Topics[0] != ArbitrationMadeID {
		return nil, fmt.Errorf("%w: not ArbitrationMade", ErrUnexpectedLog)
	}
	values, err := TrustedOracleArbiterABI.Events["ArbitrationMade"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ArbitrationMade: %w", err)
	}
	decision, ok := values[0].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: ArbitrationMade decision is %T", ErrUnexpectedLog, values[0])
	}
	return &ArbitrationMade{
		DecisionKey: log.Topics[1],
		Obligation:  log.Topics[2],
		Oracle:      TopicAddress(log.Topics[3]),
		Decision:    decision,
		Raw:         log,
	}, nil
}

// ArbitrationRequestedLog builds the log the arbiter emits for a request
func ArbitrationRequestedLog(arbiter common.Address, obligation common.Hash, oracle common.Address, demand []byte) (types.Log, error) {
	data, err := TrustedOracleArbiterABI.Events["ArbitrationRequested"].Inputs.NonIndexed().Pack(demand)
	if err != nil {
		return types.Log{}, fmt.Errorf("failed to pack ArbitrationRequested: %w", err)
	}
	return types.Log{
		Address: arbiter,
		Topics:  []common.Hash{ArbitrationRequestedID, obligation, AddressTopic(oracle)},
		Data:    data,
	}, nil
}

// ArbitrationMadeLog builds the log the arbiter emits for a decision
func ArbitrationMadeLog(arbiter common.Address, obligation common.Hash, demand []byte, oracle common.Address, decision bool) (types.Log, error) {
	data, err := TrustedOracleArbiterABI.Events["ArbitrationMade"].Inputs.NonIndexed().Pack(decision)
	if err != nil {
		return types.Log{}, fmt.Errorf("failed to pack ArbitrationMade: %w", err)
	}
	return types.Log{
		Address: arbiter,
		Topics:  []common.Hash{ArbitrationMadeID, DecisionKey(obligation, demand), obligation, AddressTopic(oracle)},
		Data:    data,
	}, nil
}

// UnpackArbitrate decodes arbitrate calldata
func UnpackArbitrate(calldata []byte) (obligation common.Hash, demand []byte, decision bool, err error) {
	method := TrustedOracleArbiterABI.Methods["arbitrate"]
	values, err := unpackCall(method.ID, method.Inputs.Unpack, calldata)
	if err != nil {
		return common.Hash{}, nil, false, err
	}
	return values[0].([32]byte), values[1].([]byte), values[2].(bool), nil
}

// UnpackRequestArbitration decodes requestArbitration calldata
func UnpackRequestArbitration(calldata []byte) (obligation common.Hash, oracle common.Address, demand []byte, err error) {
	method := TrustedOracleArbiterABI.Methods["requestArbitration"]
	values, err := unpackCall(method.ID, method.Inputs.Unpack, calldata)
	if err != nil {
		return common.Hash{}, common.Address{}, nil, err
	}
	return values[0].([32]byte), values[1].(common.Address), values[2].([]byte), nil
}

func unpackCall(selector []byte, unpack func([]byte) ([]interface{}, error), calldata []byte) ([]interface{}, error) {
	if len(calldata) < 4 || !bytes.Equal(calldata[:4], selector) {
		return nil, fmt.Errorf("%w: selector mismatch", ErrUnexpectedCall)
	}
	values, err := unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack calldata: %w", err)
	}
	return values, nil
}
