package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// AttestedID is topic0 of the attestation service's Attested event
var AttestedID = EASABI.Events["Attested"].ID

// AttestationRecord mirrors the attestation service's Attestation struct.
// Field order follows the ABI tuple.
type AttestationRecord struct {
	UID            common.Hash    `abi:"uid"`
	Schema         common.Hash    `abi:"schema"`
	Time           uint64         `abi:"time"`
	ExpirationTime uint64         `abi:"expirationTime"`
	RevocationTime uint64         `abi:"revocationTime"`
	RefUID         common.Hash    `abi:"refUID"`
	Recipient      common.Address `abi:"recipient"`
	Attester       common.Address `abi:"attester"`
	Revocable      bool           `abi:"revocable"`
	Data           []byte         `abi:"data"`
}

// PackGetAttestation encodes getAttestation(uid)
func PackGetAttestation(uid common.Hash) ([]byte, error) {
	return EASABI.Pack("getAttestation", uid)
}

// UnpackGetAttestation decodes the return data of getAttestation
func UnpackGetAttestation(output []byte) (*AttestationRecord, error) {
	values, err := EASABI.Methods["getAttestation"].Outputs.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack attestation: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("failed to unpack attestation: expected 1 value, got %d", len(values))
	}
	record, err := Convert[AttestationRecord](values[0])
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// PackGetAttestationResult encodes an attestation the way getAttestation returns it
func PackGetAttestationResult(record AttestationRecord) ([]byte, error) {
	return EASABI.Methods["getAttestation"].Outputs.Pack(record)
}

// UnpackGetAttestationCall decodes getAttestation calldata
func UnpackGetAttestationCall(calldata []byte) (common.Hash, error) {
	method := EASABI.Methods["getAttestation"]
	values, err := unpackCall(method.ID, method.Inputs.Unpack, calldata)
	if err != nil {
		return common.Hash{}, err
	}
	return values[0].([32]byte), nil
}

// AttestedUIDs returns the UIDs of every Attested event emitted by eas in a receipt
func AttestedUIDs(eas common.Address, receipt *types.Receipt) ([]common.Hash, error) {
	if receipt == nil {
		return nil, nil
	}
	var uids []common.Hash
	for _, log := range receipt.Logs {
		if log.Address != eas || len(log.Topics) == 0 || log.Topics[0] != AttestedID {
			continue
		}
		values, err := EASABI.Events["Attested"].Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack Attested: %w", err)
		}
		uids = append(uids, values[0].([32]byte))
	}
	return uids, nil
}

// AttestedLog builds an Attested log, used when simulating the attestation service
func AttestedLog(eas common.Address, record AttestationRecord) (types.Log, error) {
	data, err := EASABI.Events["Attested"].Inputs.NonIndexed().Pack(record.UID)
	if err != nil {
		return types.Log{}, fmt.Errorf("failed to pack Attested: %w", err)
	}
	return types.Log{
		Address: eas,
		Topics:  []common.Hash{AttestedID, AddressTopic(record.Recipient), AddressTopic(record.Attester), record.Schema},
		Data:    data,
	}, nil
}
