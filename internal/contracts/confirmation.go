package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ConfirmationRequestedID is topic0 of ConfirmationRequested
	ConfirmationRequestedID = ConfirmationArbiterABI.Events["ConfirmationRequested"].ID
	// ConfirmationMadeID is topic0 of ConfirmationMade
	ConfirmationMadeID = ConfirmationArbiterABI.Events["ConfirmationMade"].ID
	// ConfirmationRevokedID is topic0 of ConfirmationRevoked
	ConfirmationRevokedID = ConfirmationArbiterABI.Events["ConfirmationRevoked"].ID
)

// ConfirmationEventKind tells the confirmation log types apart
type ConfirmationEventKind int

const (
	ConfirmationRequestedEvent ConfirmationEventKind = iota + 1
	ConfirmationMadeEvent
	ConfirmationRevokedEvent
)

// ConfirmationEvent is a decoded confirmation arbiter log
type ConfirmationEvent struct {
	Kind        ConfirmationEventKind
	Fulfillment common.Hash
	Escrow      common.Hash
	Confirmer   common.Address
	Raw         types.Log
}

// PackConfirmationCall encodes requestConfirmation, confirm or revoke
func PackConfirmationCall(method string, fulfillment, escrow common.Hash) ([]byte, error) {
	switch method {
	case "requestConfirmation", "confirm", "revoke":
		return ConfirmationArbiterABI.Pack(method, fulfillment, escrow)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedCall, method)
	}
}

// PackConfirmations encodes confirmations(fulfillment, escrow)
func PackConfirmations(fulfillment, escrow common.Hash) ([]byte, error) {
	return ConfirmationArbiterABI.Pack("confirmations", fulfillment, escrow)
}

// UnpackConfirmations decodes confirmations(...) return data
func UnpackConfirmations(output []byte) (bool, error) {
	values, err := ConfirmationArbiterABI.Methods["confirmations"].Outputs.Unpack(output)
	if err != nil {
		return false, fmt.Errorf("failed to unpack confirmations: %w", err)
	}
	return values[0].(bool), nil
}

// ParseConfirmationEvent decodes any of the three confirmation logs
func ParseConfirmationEvent(log types.Log) (*ConfirmationEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrUnexpectedLog)
	}
	switch {
	case log.Topics[0] == ConfirmationRequestedID && len(log.Topics) == 4:
		return &ConfirmationEvent{
			Kind:        ConfirmationRequestedEvent,
			Fulfillment: log.Topics[1],
			Confirmer:   TopicAddress(log.Topics[2]),
			Escrow:      log.Topics[3],
			Raw:         log,
		}, nil
	case log.Topics[0] == ConfirmationMadeID && len(log.Topics) == 3:
		return &ConfirmationEvent{Kind: ConfirmationMadeEvent, Fulfillment: log.Topics[1], Escrow: log.Topics[2], Raw: log}, nil
	case log.Topics[0] == ConfirmationRevokedID && len(log.Topics) == 3:
		return &ConfirmationEvent{Kind: ConfirmationRevokedEvent, Fulfillment: log.Topics[1], Escrow: log.Topics[2], Raw: log}, nil
	default:
		return nil, fmt.Errorf("%w: not a confirmation event", ErrUnexpectedLog)
	}
}
