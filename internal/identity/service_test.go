package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

// MockCredentialRepository is a mock credential repository
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Create(ctx context.Context, credential *types.VerifiableCredential) (*types.VerifiableCredential, error) {
	args := m.Called(ctx, credential)
	if fn, ok := args.Get(0).(func(context.Context, *types.VerifiableCredential) *types.VerifiableCredential); ok {
		return fn(ctx, credential), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VerifiableCredential), args.Error(1)
}

func (m *MockCredentialRepository) GetByID(ctx context.Context, credentialID string) (*types.VerifiableCredential, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VerifiableCredential), args.Error(1)
}

func (m *MockCredentialRepository) GetByUserID(ctx context.Context, userID string) ([]*types.VerifiableCredential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.VerifiableCredential), args.Error(1)
}

func (m *MockCredentialRepository) GetByUserAndType(ctx context.Context, userID string, proofType types.ProofType) ([]*types.VerifiableCredential, error) {
	args := m.Called(ctx, userID, proofType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.VerifiableCredential), args.Error(1)
}

func (m *MockCredentialRepository) GetByUserAndStatus(ctx context.Context, userID string, status types.CredentialStatus) ([]*types.VerifiableCredential, error) {
	args := m.Called(ctx, userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.VerifiableCredential), args.Error(1)
}

func (m *MockCredentialRepository) Update(ctx context.Context, credential *types.VerifiableCredential) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

// MockSigner is a mock signing keypair
type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) Sign(payload []byte) (string, error) {
	args := m.Called(payload)
	return args.String(0), args.Error(1)
}

func (m *MockSigner) Verify(payload []byte, signature string) (bool, error) {
	args := m.Called(payload, signature)
	return args.Bool(0), args.Error(1)
}

func (m *MockSigner) CreateDigitalSignature(payload []byte) (*types.DigitalSignature, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.DigitalSignature), args.Error(1)
}

func (m *MockSigner) ExportDIDDocument(method, domain string) (*types.DIDDocument, error) {
	args := m.Called(method, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.DIDDocument), args.Error(1)
}

func (m *MockSigner) KeyID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSigner) KeyInfo() (*types.SigningKeyInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SigningKeyInfo), args.Error(1)
}

func testDIDDocument() *types.DIDDocument {
	return &types.DIDDocument{ID: "did:key:ztest"}
}

func newTestService(repo *MockCredentialRepository, signer *MockSigner) *Service {
	return NewService(repo, signer, nil, "medichain.example.com", "global", logger.New("error"), nil)
}

func passthroughCreate(repo *MockCredentialRepository) {
	repo.On("Create", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, c *types.VerifiableCredential) *types.VerifiableCredential { return c }, nil)
}

func TestStoreCredentials_SignsAndStoresPending(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	signer.On("ExportDIDDocument", "key", "medichain.example.com").Return(testDIDDocument(), nil)
	signer.On("CreateDigitalSignature", mock.Anything).Return(&types.DigitalSignature{
		Signature: "c2ln",
		Algorithm: "Ed25519",
		KeyID:     "key-1",
	}, nil)
	passthroughCreate(repo)

	created, err := svc.StoreCredentials(context.Background(), "user-1", []types.ProofSubmission{
		*validProof(types.ProofTypeAadhaar, "123412341234"),
	})
	assert.NoError(t, err)
	assert.Len(t, created, 1)

	credential := created[0]
	assert.Equal(t, types.CredentialStatusPending, credential.Status)
	assert.Equal(t, "c2ln", credential.DigitalSignature.Signature)
	assert.NotEmpty(t, credential.DocumentHash)
	assert.Equal(t, "did:key:ztest", credential.DIDUrl)
	assert.Equal(t, credential.ID, credential.SelfSovereignData.CredentialID)
}

func TestStoreCredentials_SigningFailureStoresSentinel(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	signer.On("ExportDIDDocument", mock.Anything, mock.Anything).Return(testDIDDocument(), nil)
	signer.On("CreateDigitalSignature", mock.Anything).
		Return(nil, errors.New("hsm offline"))
	passthroughCreate(repo)

	created, err := svc.StoreCredentials(context.Background(), "user-1", []types.ProofSubmission{
		*validProof(types.ProofTypeGovernmentID, "gov-1"),
	})
	assert.NoError(t, err, "a transient signing failure must not abort intake")
	assert.Equal(t, types.UnsignedSignatureSentinel, created[0].DigitalSignature.Signature)
	assert.Equal(t, types.CredentialStatusPending, created[0].Status)
}

func TestStoreCredentials_ImperfectMetadataStoredPending(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	signer.On("ExportDIDDocument", mock.Anything, mock.Anything).Return(testDIDDocument(), nil)
	signer.On("CreateDigitalSignature", mock.Anything).Return(&types.DigitalSignature{
		Signature: "c2ln",
		Algorithm: "Ed25519",
		KeyID:     "key-1",
	}, nil)
	passthroughCreate(repo)

	// A four-digit aadhaar number and a malformed passport number both
	// fail the document rules; intake stores them pending regardless.
	aadhaar := validProof(types.ProofTypeAadhaar, "1234")
	aadhaar.Metadata.Issuer = "UIDAI"
	passport := validProof(types.ProofTypePassport, "abc123")

	created, err := svc.StoreCredentials(context.Background(), "user-1", []types.ProofSubmission{
		*aadhaar,
		*passport,
	})
	assert.NoError(t, err)
	assert.Len(t, created, 2)
	for _, credential := range created {
		assert.Equal(t, types.CredentialStatusPending, credential.Status)
	}
	assert.False(t, ValidateGovernmentProof(types.ProofTypePassport, passport.Metadata))
	repo.AssertNumberOfCalls(t, "Create", 2)
}

func TestStoreCredentials_RegionFromSubmission(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	signer.On("ExportDIDDocument", "web", "medichain.example.com").Return(testDIDDocument(), nil)
	signer.On("CreateDigitalSignature", mock.Anything).Return(&types.DigitalSignature{
		Signature: "c2ln",
		Algorithm: "Ed25519",
		KeyID:     "key-1",
	}, nil)
	passthroughCreate(repo)

	proof := validProof(types.ProofTypePassport, "A1234567")
	proof.RegionCode = "eu"

	created, err := svc.StoreCredentials(context.Background(), "user-1", []types.ProofSubmission{*proof})
	assert.NoError(t, err)
	assert.Equal(t, "eu", created[0].RegionCode)
	assert.Equal(t, types.CredentialFormatSDJWT, created[0].CredentialFormat)
	signer.AssertCalled(t, "ExportDIDDocument", "web", "medichain.example.com")
}

func TestStoreCredentials_InvalidProofAborts(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	_, err := svc.StoreCredentials(context.Background(), "user-1", []types.ProofSubmission{
		*validProof("carrier_pigeon", "x"),
	})
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidProofType))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func pendingCredential() *types.VerifiableCredential {
	return &types.VerifiableCredential{
		ID:           "cred-1",
		UserID:       "user-1",
		ProofType:    types.ProofTypeMedicalLicense,
		Status:       types.CredentialStatusPending,
		DocumentHash: "hash",
		Metadata: types.ProofMetadata{
			Issuer:         "Medical Council",
			IssuedDate:     time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
			DocumentNumber: "MC-100",
		},
		DigitalSignature: &types.DigitalSignature{
			Signature: "c2ln",
			Algorithm: "Ed25519",
			KeyID:     "key-1",
		},
		VerificationHistory: []types.VerificationResult{},
	}
}

func TestVerifyCredential_TwoFactorApproval(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	signer.On("KeyID").Return("key-1")
	signer.On("Verify", mock.Anything, "c2ln").Return(true, nil)

	verified, err := svc.VerifyCredential(context.Background(), "cred-1", &types.VerificationRequest{
		VerifiedBy: "reviewer-1",
		IsValid:    true,
	})
	assert.NoError(t, err)
	assert.Equal(t, types.CredentialStatusVerified, verified.Status)
	assert.Len(t, verified.VerificationHistory, 1)
	assert.True(t, verified.VerificationHistory[0].IsValid)
}

func TestVerifyCredential_SignatureMismatchRejects(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	signer.On("KeyID").Return("key-1")
	signer.On("Verify", mock.Anything, "c2ln").Return(false, nil)

	// Reviewer approves but the stored signature no longer verifies
	verified, err := svc.VerifyCredential(context.Background(), "cred-1", &types.VerificationRequest{
		VerifiedBy: "reviewer-1",
		IsValid:    true,
	})
	assert.NoError(t, err)
	assert.Equal(t, types.CredentialStatusRejected, verified.Status)
	assert.False(t, verified.VerificationHistory[0].IsValid)
	assert.Equal(t, false, verified.VerificationHistory[0].VerificationData["signatureValid"])
}

func TestVerifyCredential_ReviewerRejects(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	signer.On("KeyID").Return("key-1")
	signer.On("Verify", mock.Anything, "c2ln").Return(true, nil)

	verified, err := svc.VerifyCredential(context.Background(), "cred-1", &types.VerificationRequest{
		VerifiedBy: "reviewer-1",
		IsValid:    false,
		Notes:      "document illegible",
	})
	assert.NoError(t, err)
	assert.Equal(t, types.CredentialStatusRejected, verified.Status)
}

func TestVerifyCredential_UnsignedSentinelSkipsRecheck(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	credential.DigitalSignature.Signature = types.UnsignedSignatureSentinel
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	verified, err := svc.VerifyCredential(context.Background(), "cred-1", &types.VerificationRequest{
		VerifiedBy: "reviewer-1",
		IsValid:    true,
	})
	assert.NoError(t, err)
	assert.Equal(t, types.CredentialStatusVerified, verified.Status)
	signer.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestVerifyCredential_RevokedIsTerminal(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	credential.IsRevoked = true
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)

	_, err := svc.VerifyCredential(context.Background(), "cred-1", &types.VerificationRequest{
		VerifiedBy: "reviewer-1",
		IsValid:    true,
	})
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRevokeCredential(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	credential.Status = types.CredentialStatusVerified
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	revoked, err := svc.RevokeCredential(context.Background(), "cred-1", "admin-1", "license suspended")
	assert.NoError(t, err)
	assert.True(t, revoked.IsRevoked)
	assert.NotNil(t, revoked.RevokedAt)
	assert.Equal(t, types.CredentialStatusRejected, revoked.Status)
	assert.Equal(t, "license suspended", revoked.RevokedReason)
}

func TestRevokeCredential_Idempotent(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	credential.IsRevoked = true
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)

	revoked, err := svc.RevokeCredential(context.Background(), "cred-1", "admin-1", "again")
	assert.NoError(t, err)
	assert.True(t, revoked.IsRevoked)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func verifiedCredential(proofType types.ProofType) *types.VerifiableCredential {
	return &types.VerifiableCredential{
		ProofType: proofType,
		Status:    types.CredentialStatusVerified,
	}
}

func TestHasValidCredentials_DoctorComplete(t *testing.T) {
	repo := new(MockCredentialRepository)
	svc := newTestService(repo, new(MockSigner))

	repo.On("GetByUserID", mock.Anything, "doc-1").Return([]*types.VerifiableCredential{
		verifiedCredential(types.ProofTypeAadhaar),
		verifiedCredential(types.ProofTypeMedicalLicense),
		verifiedCredential(types.ProofTypeEducationCertificate),
	}, nil)

	check, err := svc.HasValidCredentials(context.Background(), "doc-1", "doctor")
	assert.NoError(t, err)
	assert.True(t, check.HasValid)
	assert.Empty(t, check.MissingTypes)
}

func TestHasValidCredentials_EitherOrMarker(t *testing.T) {
	repo := new(MockCredentialRepository)
	svc := newTestService(repo, new(MockSigner))

	// Medical license only: government identity slot reports its
	// either-or marker, not the individual alternatives
	repo.On("GetByUserID", mock.Anything, "doc-2").Return([]*types.VerifiableCredential{
		verifiedCredential(types.ProofTypeMedicalLicense),
	}, nil)

	check, err := svc.HasValidCredentials(context.Background(), "doc-2", "doctor")
	assert.NoError(t, err)
	assert.False(t, check.HasValid)
	assert.Equal(t, []types.ProofType{
		types.ProofTypeGovernmentIDAlternative,
		types.ProofTypeEducationCertificate,
	}, check.MissingTypes)
}

func TestHasValidCredentials_IgnoresRevokedAndPending(t *testing.T) {
	repo := new(MockCredentialRepository)
	svc := newTestService(repo, new(MockSigner))

	revoked := verifiedCredential(types.ProofTypeGovernmentID)
	revoked.IsRevoked = true
	pending := &types.VerifiableCredential{
		ProofType: types.ProofTypeAadhaar,
		Status:    types.CredentialStatusPending,
	}
	repo.On("GetByUserID", mock.Anything, "pat-1").Return(
		[]*types.VerifiableCredential{revoked, pending}, nil)

	check, err := svc.HasValidCredentials(context.Background(), "pat-1", "patient")
	assert.NoError(t, err)
	assert.False(t, check.HasValid)
	assert.Equal(t, []types.ProofType{types.ProofTypeGovernmentIDAlternative}, check.MissingTypes)
}

func TestHasValidCredentials_UnknownRoleGetsBaseline(t *testing.T) {
	repo := new(MockCredentialRepository)
	svc := newTestService(repo, new(MockSigner))

	repo.On("GetByUserID", mock.Anything, "u-1").Return([]*types.VerifiableCredential{
		verifiedCredential(types.ProofTypeGovernmentID),
	}, nil)

	check, err := svc.HasValidCredentials(context.Background(), "u-1", "astronaut")
	assert.NoError(t, err)
	assert.True(t, check.HasValid)
}

func TestHasValidCredentialTypes_SetDifference(t *testing.T) {
	repo := new(MockCredentialRepository)
	svc := newTestService(repo, new(MockSigner))

	repo.On("GetByUserID", mock.Anything, "doc-1").Return([]*types.VerifiableCredential{
		verifiedCredential(types.ProofTypeAadhaar),
		verifiedCredential(types.ProofTypeMedicalLicense),
	}, nil)

	check, err := svc.HasValidCredentialTypes(context.Background(), "doc-1", []types.ProofType{
		types.ProofTypeAadhaar,
		types.ProofTypeMedicalLicense,
	})
	assert.NoError(t, err)
	assert.True(t, check.HasValid)
	assert.Empty(t, check.MissingTypes)

	check, err = svc.HasValidCredentialTypes(context.Background(), "doc-1", []types.ProofType{
		types.ProofTypeAadhaar,
		types.ProofTypeEducationCertificate,
		types.ProofTypeHospitalAffiliation,
	})
	assert.NoError(t, err)
	assert.False(t, check.HasValid)
	assert.Equal(t, []types.ProofType{
		types.ProofTypeEducationCertificate,
		types.ProofTypeHospitalAffiliation,
	}, check.MissingTypes)
}

func TestVerifyCredential_ConcurrentVerificationsSerialized(t *testing.T) {
	repo := new(MockCredentialRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, signer)

	credential := pendingCredential()
	credential.DigitalSignature.Signature = types.UnsignedSignatureSentinel
	repo.On("GetByID", mock.Anything, "cred-1").Return(credential, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.VerifyCredential(context.Background(), "cred-1", &types.VerificationRequest{
				VerifiedBy: "reviewer-1",
				IsValid:    true,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestGetUserCredentials_StatusFilter(t *testing.T) {
	repo := new(MockCredentialRepository)
	svc := newTestService(repo, new(MockSigner))

	verified := []*types.VerifiableCredential{verifiedCredential(types.ProofTypePassport)}
	repo.On("GetByUserAndStatus", mock.Anything, "u-1", types.CredentialStatusVerified).Return(verified, nil)

	got, err := svc.GetUserCredentials(context.Background(), "u-1", types.CredentialStatusVerified)
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	repo.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)

	repo.On("GetByUserID", mock.Anything, "u-1").Return(verified, nil)
	got, err = svc.GetUserCredentials(context.Background(), "u-1", "")
	assert.NoError(t, err)
	assert.Len(t, got, 1)
}
