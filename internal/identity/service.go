package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medichain/ssi-custody/pkg/encryption"
	"github.com/medichain/ssi-custody/pkg/interfaces"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/monitoring"
	"github.com/medichain/ssi-custody/pkg/region"
	"github.com/medichain/ssi-custody/pkg/repository"
	"github.com/medichain/ssi-custody/pkg/types"
)

const (
	protocolName    = "medichain-ssi"
	protocolVersion = "1.0"
)

var _ interfaces.IdentityService = (*Service)(nil)

// Service implements the verifiable credential lifecycle: intake and
// signing, reviewer verification, revocation, and role eligibility.
type Service struct {
	credentials   repository.CredentialRepositoryInterface
	signer        interfaces.Signer
	store         interfaces.ContentStore
	logger        *logger.Logger
	metrics       *monitoring.MetricsCollector
	webDomain     string
	defaultRegion string

	// verifyMu serializes verification per credential so concurrent
	// reviewer decisions cannot interleave history appends.
	verifyMu sync.Mutex
	locks    map[string]*sync.Mutex
}

// NewService creates a new identity service
func NewService(
	credentials repository.CredentialRepositoryInterface,
	signer interfaces.Signer,
	store interfaces.ContentStore,
	webDomain, defaultRegion string,
	log *logger.Logger,
	metrics *monitoring.MetricsCollector,
) *Service {
	return &Service{
		credentials:   credentials,
		signer:        signer,
		store:         store,
		logger:        log,
		metrics:       metrics,
		webDomain:     webDomain,
		defaultRegion: defaultRegion,
		locks:         make(map[string]*sync.Mutex),
	}
}

// signingPayload is the canonical JSON structure signed for a credential.
// Field order is fixed; changing it invalidates every stored signature.
type signingPayload struct {
	ID           string              `json:"id"`
	Issuer       string              `json:"issuer"`
	IssuedDate   time.Time           `json:"issuedDate"`
	Holder       string              `json:"holder"`
	ProofType    types.ProofType     `json:"proofType"`
	DocumentHash string              `json:"documentHash"`
	Metadata     types.ProofMetadata `json:"metadata"`
}

// StoreCredentials ingests a batch of proof submissions for a user. Each
// proof is shape-checked, hashed, optionally pinned encrypted, and signed.
// Metadata failing the per-type document rules is logged but the proof is
// still stored pending; a transient signing failure likewise never aborts
// intake, the credential is stored with the unsigned sentinel instead.
func (s *Service) StoreCredentials(ctx context.Context, userID string, proofs []types.ProofSubmission) ([]*types.VerifiableCredential, error) {
	if userID == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "userId is required", nil)
	}
	if len(proofs) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "at least one proof is required", nil)
	}

	created := make([]*types.VerifiableCredential, 0, len(proofs))
	for i := range proofs {
		proof := &proofs[i]
		if err := ValidateProof(proof); err != nil {
			return nil, err
		}

		metadataValid := ValidateGovernmentProof(proof.Type, proof.Metadata)
		if !metadataValid {
			s.logger.WithFields(map[string]interface{}{
				"user_id":    userID,
				"proof_type": proof.Type,
			}).Warn("Proof metadata fails document rules, stored pending for review")
		}

		credential, err := s.buildCredential(ctx, userID, proof)
		if err != nil {
			return nil, err
		}

		credential, err = s.credentials.Create(ctx, credential)
		if err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError,
				"failed to persist credential", err)
		}

		signed := credential.DigitalSignature != nil
		if s.metrics != nil {
			s.metrics.RecordCredentialEvent(string(proof.Type), "submit", "pending")
			s.metrics.RecordSigningOperation(signed)
		}
		s.logger.CredentialEvent(userID, credential.ID, string(proof.Type), "submit", true,
			map[string]interface{}{"signed": signed, "metadata_valid": metadataValid})

		created = append(created, credential)
	}

	return created, nil
}

// buildCredential assembles a pending credential from a validated proof
func (s *Service) buildCredential(ctx context.Context, userID string, proof *types.ProofSubmission) (*types.VerifiableCredential, error) {
	documentHash := encryption.HashData(proof.Document)
	now := time.Now().UTC()

	regionCode := proof.RegionCode
	if regionCode == "" {
		regionCode = s.defaultRegion
	}
	regionPolicy, _ := region.Resolve(regionCode)
	didDoc, err := s.signer.ExportDIDDocument(regionPolicy.PreferredDIDMethod, s.webDomain)
	if err != nil {
		s.logger.WithError(err).Warn("DID document export failed, credential stored without DID context")
		didDoc = nil
	}

	credential := &types.VerifiableCredential{
		UserID:       userID,
		ProofType:    proof.Type,
		Status:       types.CredentialStatusPending,
		Metadata:     proof.Metadata,
		DocumentHash: documentHash,
		VerificationHistory: []types.VerificationResult{},
		SelfSovereignData: &types.SelfSovereignData{
			SubmittedAt: now,
			Version:     protocolVersion,
			Protocol:    protocolName,
		},
		DIDContext:          didDoc,
		CredentialFormat:    regionPolicy.PreferredFormat,
		RegionCode:          regionPolicy.Code,
		GovernanceFramework: regionPolicy.GovernanceFramework,
	}
	if didDoc != nil {
		credential.DIDUrl = didDoc.ID
	}

	// Pin the raw document encrypted when a content store is wired;
	// the credential is hash-complete without it.
	if s.store != nil {
		cid, err := s.store.StoreEncrypted(ctx, proof.Document,
			fmt.Sprintf("%s-%s", proof.Type, documentHash[:12]))
		if err != nil {
			s.logger.WithError(err).WithField("proof_type", proof.Type).
				Warn("Proof document pinning failed, credential stored without document URL")
		} else {
			credential.EncryptedDocumentURL = cid
		}
	}

	// Placeholder ID so the payload is stable before insert
	credential.ID = newCredentialID()
	credential.SelfSovereignData.CredentialID = credential.ID

	if proof.Signature != nil && proof.Signature.Signature != "" {
		credential.DigitalSignature = proof.Signature
		return credential, nil
	}

	payload, err := canonicalPayload(credential)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError,
			"failed to build signing payload", err)
	}

	signature, err := s.signer.CreateDigitalSignature(payload)
	if err != nil {
		s.logger.WithError(err).WithField("credential_id", credential.ID).
			Warn("Credential signing failed, storing unsigned sentinel")
		credential.DigitalSignature = &types.DigitalSignature{
			Signature: types.UnsignedSignatureSentinel,
			Algorithm: "Ed25519",
			Timestamp: now,
		}
		return credential, nil
	}

	credential.DigitalSignature = signature
	return credential, nil
}

// VerifyCredential applies a reviewer's decision to a pending credential.
// The outcome is two-factor: the reviewer must approve AND the stored
// signature must still verify against the canonical payload. Concurrent
// verifications of the same credential are serialized.
func (s *Service) VerifyCredential(ctx context.Context, credentialID string, request *types.VerificationRequest) (*types.VerifiableCredential, error) {
	if request == nil || request.VerifiedBy == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "verifiedBy is required", nil)
	}

	lock := s.credentialLock(credentialID)
	lock.Lock()
	defer lock.Unlock()

	credential, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	if credential.IsRevoked {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"revoked credentials cannot be verified",
			map[string]interface{}{"credentialId": credentialID})
	}

	signatureOK, signatureChecked := s.recheckSignature(credential)

	isVerified := request.IsValid && signatureOK
	result := types.VerificationResult{
		IsValid:           isVerified,
		VerifiedAt:        time.Now().UTC(),
		VerifiedBy:        request.VerifiedBy,
		VerificationNotes: request.Notes,
		VerificationData:  request.VerificationData,
	}
	if signatureChecked && !signatureOK {
		if result.VerificationData == nil {
			result.VerificationData = map[string]interface{}{}
		}
		result.VerificationData["signatureValid"] = false
	}

	credential.VerificationHistory = append(credential.VerificationHistory, result)
	if isVerified {
		credential.Status = types.CredentialStatusVerified
	} else {
		credential.Status = types.CredentialStatusRejected
	}

	if err := s.credentials.Update(ctx, credential); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError,
			"failed to persist verification", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCredentialEvent(string(credential.ProofType), "verify", string(credential.Status))
	}
	s.logger.CredentialEvent(credential.UserID, credential.ID, string(credential.ProofType),
		"verify", isVerified, map[string]interface{}{
			"verified_by":       request.VerifiedBy,
			"reviewer_approved": request.IsValid,
			"signature_valid":   signatureOK,
		})

	return credential, nil
}

// recheckSignature re-verifies the stored signature over the canonical
// payload. Credentials carrying the unsigned sentinel or an external
// signature cannot be re-checked and pass by default; only a present,
// service-signed signature that fails verification blocks the credential.
func (s *Service) recheckSignature(credential *types.VerifiableCredential) (ok, checked bool) {
	sig := credential.DigitalSignature
	if sig == nil || sig.Signature == "" || sig.Signature == types.UnsignedSignatureSentinel {
		return true, false
	}
	if sig.KeyID != "" && sig.KeyID != s.signer.KeyID() {
		return true, false
	}

	payload, err := canonicalPayload(credential)
	if err != nil {
		s.logger.WithError(err).WithField("credential_id", credential.ID).
			Error("Failed to rebuild signing payload")
		return false, true
	}

	valid, err := s.signer.Verify(payload, sig.Signature)
	if err != nil {
		s.logger.WithError(err).WithField("credential_id", credential.ID).
			Error("Signature re-check failed")
		return false, true
	}
	return valid, true
}

// RevokeCredential marks a credential revoked. Revocation is terminal:
// the status moves to rejected and no later operation can restore it.
func (s *Service) RevokeCredential(ctx context.Context, credentialID, revokedBy, reason string) (*types.VerifiableCredential, error) {
	lock := s.credentialLock(credentialID)
	lock.Lock()
	defer lock.Unlock()

	credential, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if credential.IsRevoked {
		return credential, nil
	}

	now := time.Now().UTC()
	credential.IsRevoked = true
	credential.RevokedAt = &now
	credential.RevokedReason = reason
	credential.Status = types.CredentialStatusRejected

	if err := s.credentials.Update(ctx, credential); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError,
			"failed to persist revocation", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCredentialEvent(string(credential.ProofType), "revoke", "revoked")
	}
	s.logger.CredentialEvent(credential.UserID, credential.ID, string(credential.ProofType),
		"revoke", true, map[string]interface{}{
			"revoked_by": revokedBy,
			"reason":     reason,
		})

	return credential, nil
}

// GetUserCredentials lists a user's credentials, optionally filtered by status
func (s *Service) GetUserCredentials(ctx context.Context, userID string, status types.CredentialStatus) ([]*types.VerifiableCredential, error) {
	if status == "" {
		return s.credentials.GetByUserID(ctx, userID)
	}
	return s.credentials.GetByUserAndStatus(ctx, userID, status)
}

// HasValidCredentials reports whether a user holds a verified, unrevoked
// credential for every slot their role requires, listing any missing ones.
func (s *Service) HasValidCredentials(ctx context.Context, userID, role string) (*types.CredentialCheck, error) {
	valid, err := s.validProofTypes(ctx, userID)
	if err != nil {
		return nil, err
	}

	check := &types.CredentialCheck{HasValid: true, MissingTypes: []types.ProofType{}}
	for _, req := range requirementsForRole(role) {
		satisfied := false
		for _, alt := range req.alternatives {
			if valid[alt] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			check.HasValid = false
			check.MissingTypes = append(check.MissingTypes, req.missing)
		}
	}
	return check, nil
}

// HasValidCredentialTypes reports whether a user holds a verified,
// unrevoked credential for each of the listed proof types, independent
// of any role mapping.
func (s *Service) HasValidCredentialTypes(ctx context.Context, userID string, requiredTypes []types.ProofType) (*types.CredentialCheck, error) {
	valid, err := s.validProofTypes(ctx, userID)
	if err != nil {
		return nil, err
	}

	check := &types.CredentialCheck{HasValid: true, MissingTypes: []types.ProofType{}}
	for _, required := range requiredTypes {
		if !valid[required] {
			check.HasValid = false
			check.MissingTypes = append(check.MissingTypes, required)
		}
	}
	return check, nil
}

// validProofTypes collects the proof types a user holds verified,
// unrevoked credentials for.
func (s *Service) validProofTypes(ctx context.Context, userID string) (map[types.ProofType]bool, error) {
	credentials, err := s.credentials.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	valid := make(map[types.ProofType]bool)
	for _, credential := range credentials {
		if credential.Status == types.CredentialStatusVerified && !credential.IsRevoked {
			valid[credential.ProofType] = true
		}
	}
	return valid, nil
}

// KeyInfo exposes the public description of the service signing key
func (s *Service) KeyInfo(ctx context.Context) (*types.SigningKeyInfo, error) {
	return s.signer.KeyInfo()
}

// credentialLock returns the mutex serializing operations on one credential
func (s *Service) credentialLock(credentialID string) *sync.Mutex {
	s.verifyMu.Lock()
	defer s.verifyMu.Unlock()
	lock, ok := s.locks[credentialID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[credentialID] = lock
	}
	return lock
}

func newCredentialID() string {
	return uuid.New().String()
}

// canonicalPayload builds the byte payload signed for a credential
func canonicalPayload(credential *types.VerifiableCredential) ([]byte, error) {
	return json.Marshal(signingPayload{
		ID:           credential.ID,
		Issuer:       credential.Metadata.Issuer,
		IssuedDate:   credential.Metadata.IssuedDate,
		Holder:       credential.UserID,
		ProofType:    credential.ProofType,
		DocumentHash: credential.DocumentHash,
		Metadata:     credential.Metadata,
	})
}
