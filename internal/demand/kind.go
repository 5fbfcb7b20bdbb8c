package demand

// Kind identifies the arbiter family a demand belongs to
type Kind int

const (
	KindUnknown Kind = iota
	KindTrustedOracle
	KindTrustedParty
	KindSpecificAttestation
	KindIntrinsics
	KindIntrinsics2
	KindAny
	KindAll
	KindNot
	KindAttester
	KindRecipient
	KindSchema
	KindRefUID
	KindUID
	KindRevocable
	KindTimeAfter
	KindTimeBefore
	KindTimeEqual
	KindExpirationTimeAfter
	KindExpirationTimeBefore
	KindExpirationTimeEqual
	KindERC20Payment
	KindERC721Payment
	KindERC1155Payment
	KindNativePayment
	KindExclusiveRevocableConfirmation
	KindExclusiveUnrevocableConfirmation
	KindNonexclusiveRevocableConfirmation
	KindNonexclusiveUnrevocableConfirmation
)

var kindNames = map[Kind]string{
	KindUnknown:                             "unknown",
	KindTrustedOracle:                       "trusted_oracle",
	KindTrustedParty:                        "trusted_party",
	KindSpecificAttestation:                 "specific_attestation",
	KindIntrinsics:                          "intrinsics",
	KindIntrinsics2:                         "intrinsics2",
	KindAny:                                 "any",
	KindAll:                                 "all",
	KindNot:                                 "not",
	KindAttester:                            "attester",
	KindRecipient:                           "recipient",
	KindSchema:                              "schema",
	KindRefUID:                              "ref_uid",
	KindUID:                                 "uid",
	KindRevocable:                           "revocable",
	KindTimeAfter:                           "time_after",
	KindTimeBefore:                          "time_before",
	KindTimeEqual:                           "time_equal",
	KindExpirationTimeAfter:                 "expiration_time_after",
	KindExpirationTimeBefore:                "expiration_time_before",
	KindExpirationTimeEqual:                 "expiration_time_equal",
	KindERC20Payment:                        "erc20_payment",
	KindERC721Payment:                       "erc721_payment",
	KindERC1155Payment:                      "erc1155_payment",
	KindNativePayment:                       "native_payment",
	KindExclusiveRevocableConfirmation:      "exclusive_revocable_confirmation",
	KindExclusiveUnrevocableConfirmation:    "exclusive_unrevocable_confirmation",
	KindNonexclusiveRevocableConfirmation:   "nonexclusive_revocable_confirmation",
	KindNonexclusiveUnrevocableConfirmation: "nonexclusive_unrevocable_confirmation",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k Kind) isMarker() bool {
	switch k {
	case KindIntrinsics,
		KindExclusiveRevocableConfirmation,
		KindExclusiveUnrevocableConfirmation,
		KindNonexclusiveRevocableConfirmation,
		KindNonexclusiveUnrevocableConfirmation:
		return true
	}
	return false
}

func (k Kind) isAddressMatch() bool {
	return k == KindAttester || k == KindRecipient
}

func (k Kind) isHashMatch() bool {
	switch k {
	case KindSpecificAttestation, KindIntrinsics2, KindSchema, KindRefUID, KindUID:
		return true
	}
	return false
}

func (k Kind) isTimeMatch() bool {
	return k >= KindTimeAfter && k <= KindExpirationTimeEqual
}
