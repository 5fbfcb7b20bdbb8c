// Package contracts holds the ABI surface of the on-chain protocol the oracle
// talks to: the attestation service, the trusted-oracle arbiter, the
// commit-reveal obligation and the confirmation arbiters.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const easABIJSON = `[
  {"type":"function","name":"getAttestation","stateMutability":"view",
   "inputs":[{"name":"uid","type":"bytes32"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"uid","type":"bytes32"},
     {"name":"schema","type":"bytes32"},
     {"name":"time","type":"uint64"},
     {"name":"expirationTime","type":"uint64"},
     {"name":"revocationTime","type":"uint64"},
     {"name":"refUID","type":"bytes32"},
     {"name":"recipient","type":"address"},
     {"name":"attester","type":"address"},
     {"name":"revocable","type":"bool"},
     {"name":"data","type":"bytes"}]}]},
  {"type":"event","name":"Attested","anonymous":false,"inputs":[
     {"name":"recipient","type":"address","indexed":true},
     {"name":"attester","type":"address","indexed":true},
     {"name":"uid","type":"bytes32","indexed":false},
     {"name":"schemaUID","type":"bytes32","indexed":true}]},
  {"type":"event","name":"Revoked","anonymous":false,"inputs":[
     {"name":"recipient","type":"address","indexed":true},
     {"name":"attester","type":"address","indexed":true},
     {"name":"uid","type":"bytes32","indexed":false},
     {"name":"schemaUID","type":"bytes32","indexed":true}]}
]`

const trustedOracleArbiterABIJSON = `[
  {"type":"function","name":"arbitrate","stateMutability":"nonpayable",
   "inputs":[{"name":"obligation","type":"bytes32"},{"name":"demand","type":"bytes"},{"name":"decision","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"requestArbitration","stateMutability":"nonpayable",
   "inputs":[{"name":"obligation","type":"bytes32"},{"name":"oracle","type":"address"},{"name":"demand","type":"bytes"}],
   "outputs":[]},
  {"type":"event","name":"ArbitrationMade","anonymous":false,"inputs":[
     {"name":"decisionKey","type":"bytes32","indexed":true},
     {"name":"obligation","type":"bytes32","indexed":true},
     {"name":"oracle","type":"address","indexed":true},
     {"name":"decision","type":"bool","indexed":false}]},
  {"type":"event","name":"ArbitrationRequested","anonymous":false,"inputs":[
     {"name":"obligation","type":"bytes32","indexed":true},
     {"name":"oracle","type":"address","indexed":true},
     {"name":"demand","type":"bytes","indexed":false}]}
]`

const commitRevealABIJSON = `[
  {"type":"function","name":"commit","stateMutability":"payable",
   "inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"doObligation","stateMutability":"nonpayable",
   "inputs":[{"name":"data","type":"tuple","components":[
       {"name":"payload","type":"bytes"},
       {"name":"salt","type":"bytes32"},
       {"name":"schema","type":"bytes32"}]},
     {"name":"refUID","type":"bytes32"}],
   "outputs":[{"name":"uid","type":"bytes32"}]},
  {"type":"function","name":"reclaimBond","stateMutability":"nonpayable",
   "inputs":[{"name":"obligationUid","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"slashBond","stateMutability":"nonpayable",
   "inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"commitments","stateMutability":"view",
   "inputs":[{"name":"","type":"bytes32"}],
   "outputs":[{"name":"commitBlock","type":"uint64"},{"name":"commitTimestamp","type":"uint64"},{"name":"committer","type":"address"}]},
  {"type":"function","name":"commitmentClaimed","stateMutability":"view",
   "inputs":[{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"bondAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"commitDeadline","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"slashedBondRecipient","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"Committed","anonymous":false,"inputs":[
     {"name":"commitment","type":"bytes32","indexed":true},
     {"name":"claimer","type":"address","indexed":true},
     {"name":"bondAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"BondReclaimed","anonymous":false,"inputs":[
     {"name":"commitment","type":"bytes32","indexed":true},
     {"name":"claimer","type":"address","indexed":true},
     {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"BondSlashed","anonymous":false,"inputs":[
     {"name":"commitment","type":"bytes32","indexed":true},
     {"name":"slashedTo","type":"address","indexed":true},
     {"name":"amount","type":"uint256","indexed":false}]}
]`

const confirmationArbiterABIJSON = `[
  {"type":"function","name":"requestConfirmation","stateMutability":"nonpayable",
   "inputs":[{"name":"fulfillment","type":"bytes32"},{"name":"escrow","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"confirm","stateMutability":"nonpayable",
   "inputs":[{"name":"fulfillment","type":"bytes32"},{"name":"escrow","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"revoke","stateMutability":"nonpayable",
   "inputs":[{"name":"fulfillment","type":"bytes32"},{"name":"escrow","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"confirmations","stateMutability":"view",
   "inputs":[{"name":"","type":"bytes32"},{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"ConfirmationRequested","anonymous":false,"inputs":[
     {"name":"fulfillment","type":"bytes32","indexed":true},
     {"name":"confirmer","type":"address","indexed":true},
     {"name":"escrow","type":"bytes32","indexed":true}]},
  {"type":"event","name":"ConfirmationMade","anonymous":false,"inputs":[
     {"name":"fulfillment","type":"bytes32","indexed":true},
     {"name":"escrow","type":"bytes32","indexed":true}]},
  {"type":"event","name":"ConfirmationRevoked","anonymous":false,"inputs":[
     {"name":"fulfillment","type":"bytes32","indexed":true},
     {"name":"escrow","type":"bytes32","indexed":true}]}
]`

var (
	// EASABI is the subset of the attestation service used by the engine
	EASABI = mustParseABI("EAS", easABIJSON)
	// TrustedOracleArbiterABI covers arbitration requests and decisions
	TrustedOracleArbiterABI = mustParseABI("TrustedOracleArbiter", trustedOracleArbiterABIJSON)
	// CommitRevealABI covers the bonded commit-reveal obligation
	CommitRevealABI = mustParseABI("CommitRevealObligation", commitRevealABIJSON)
	// ConfirmationArbiterABI is shared by all four confirmation arbiter variants;
	// the unrevocable variants simply lack a deployed revoke.
	ConfirmationArbiterABI = mustParseABI("ConfirmationArbiter", confirmationArbiterABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
	}
	return parsed
}
