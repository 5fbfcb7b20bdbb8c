package addressbook

import (
	"encoding/json"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// AddressBook names the deployed contracts the oracle talks to and every
// demand-bearing arbiter the codec recognizes. Zero addresses are unset.
type AddressBook struct {
	EAS                    common.Address `json:"eas"`
	TrustedOracleArbiter   common.Address `json:"trusted_oracle_arbiter"`
	CommitRevealObligation common.Address `json:"commit_reveal_obligation"`

	TrustedPartyArbiter        common.Address `json:"trusted_party_arbiter"`
	SpecificAttestationArbiter common.Address `json:"specific_attestation_arbiter"`
	IntrinsicsArbiter          common.Address `json:"intrinsics_arbiter"`
	IntrinsicsArbiter2         common.Address `json:"intrinsics_arbiter_2"`
	AnyArbiter                 common.Address `json:"any_arbiter"`
	AllArbiter                 common.Address `json:"all_arbiter"`
	NotArbiter                 common.Address `json:"not_arbiter"`

	AttesterArbiter             common.Address `json:"attester_arbiter"`
	RecipientArbiter            common.Address `json:"recipient_arbiter"`
	SchemaArbiter               common.Address `json:"schema_arbiter"`
	RefUIDArbiter               common.Address `json:"ref_uid_arbiter"`
	UIDArbiter                  common.Address `json:"uid_arbiter"`
	RevocableArbiter            common.Address `json:"revocable_arbiter"`
	TimeAfterArbiter            common.Address `json:"time_after_arbiter"`
	TimeBeforeArbiter           common.Address `json:"time_before_arbiter"`
	TimeEqualArbiter            common.Address `json:"time_equal_arbiter"`
	ExpirationTimeAfterArbiter  common.Address `json:"expiration_time_after_arbiter"`
	ExpirationTimeBeforeArbiter common.Address `json:"expiration_time_before_arbiter"`
	ExpirationTimeEqualArbiter  common.Address `json:"expiration_time_equal_arbiter"`

	ERC20PaymentObligation   common.Address `json:"erc20_payment_obligation"`
	ERC721PaymentObligation  common.Address `json:"erc721_payment_obligation"`
	ERC1155PaymentObligation common.Address `json:"erc1155_payment_obligation"`
	NativePaymentObligation  common.Address `json:"native_payment_obligation"`

	ExclusiveRevocableConfirmationArbiter      common.Address `json:"exclusive_revocable_confirmation_arbiter"`
	ExclusiveUnrevocableConfirmationArbiter    common.Address `json:"exclusive_unrevocable_confirmation_arbiter"`
	NonexclusiveRevocableConfirmationArbiter   common.Address `json:"nonexclusive_revocable_confirmation_arbiter"`
	NonexclusiveUnrevocableConfirmationArbiter common.Address `json:"nonexclusive_unrevocable_confirmation_arbiter"`

	StringObligationSchema common.Hash `json:"string_obligation_schema"`
	CommitRevealSchema     common.Hash `json:"commit_reveal_schema"`

	// DeploymentBlock is the block the trusted-oracle arbiter was deployed in
	DeploymentBlock uint64 `json:"deployment_block"`
}

// Load reads and validates an address book from a JSON file
func Load(path string) (*AddressBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read address book %s", path)
	}
	return Parse(raw)
}

// Parse decodes and validates an address book
func Parse(raw []byte) (*AddressBook, error) {
	var book AddressBook
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, errors.Wrap(err, "failed to decode address book")
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	return &book, nil
}

// Validate checks that the contracts the oracle cannot run without are set
func (b *AddressBook) Validate() error {
	if b.EAS == (common.Address{}) {
		return errors.New("address book: eas is required")
	}
	if b.TrustedOracleArbiter == (common.Address{}) {
		return errors.New("address book: trusted_oracle_arbiter is required")
	}
	return nil
}

// ConfirmationArbiters returns the four confirmation arbiter deployments
func (b *AddressBook) ConfirmationArbiters() []common.Address {
	return []common.Address{
		b.ExclusiveRevocableConfirmationArbiter,
		b.ExclusiveUnrevocableConfirmationArbiter,
		b.NonexclusiveRevocableConfirmationArbiter,
		b.NonexclusiveUnrevocableConfirmationArbiter,
	}
}
