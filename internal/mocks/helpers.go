package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockChainGatewayForTest creates a new mock ChainGateway for testing
func NewMockChainGatewayForTest(t *testing.T) *MockChainGateway {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockChainGateway(ctrl)
}

// NewMockAttestationStoreForTest creates a new mock AttestationStore for testing
func NewMockAttestationStoreForTest(t *testing.T) *MockAttestationStore {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockAttestationStore(ctrl)
}
