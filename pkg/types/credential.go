package types

import "time"

// ProofType identifies the kind of identity document backing a credential
type ProofType string

const (
	ProofTypeGovernmentID         ProofType = "government_id"
	ProofTypePassport             ProofType = "passport"
	ProofTypeDrivingLicense       ProofType = "driving_license"
	ProofTypeAadhaar              ProofType = "aadhaar"
	ProofTypeVoterID              ProofType = "voter_id"
	ProofTypePANCard              ProofType = "pan_card"
	ProofTypeMedicalLicense       ProofType = "medical_license"
	ProofTypeEducationCertificate ProofType = "education_certificate"
	ProofTypeProfessionalLicense  ProofType = "professional_license"
	ProofTypeHospitalAffiliation  ProofType = "hospital_affiliation"
	ProofTypeOther                ProofType = "other"

	// ProofTypeGovernmentIDAlternative is reported by eligibility checks when a
	// role accepts either a government ID or an Aadhaar card and the user holds
	// neither. It is never stored on a credential.
	ProofTypeGovernmentIDAlternative ProofType = "aadhaar-or-government_id"
)

// KnownProofTypes lists every proof type accepted at submission
var KnownProofTypes = []ProofType{
	ProofTypeGovernmentID,
	ProofTypePassport,
	ProofTypeDrivingLicense,
	ProofTypeAadhaar,
	ProofTypeVoterID,
	ProofTypePANCard,
	ProofTypeMedicalLicense,
	ProofTypeEducationCertificate,
	ProofTypeProfessionalLicense,
	ProofTypeHospitalAffiliation,
	ProofTypeOther,
}

// IsKnownProofType reports whether t is a submittable proof type
func IsKnownProofType(t ProofType) bool {
	for _, known := range KnownProofTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CredentialStatus represents the lifecycle state of a verifiable credential
type CredentialStatus string

const (
	CredentialStatusPending  CredentialStatus = "pending"
	CredentialStatusVerified CredentialStatus = "verified"
	CredentialStatusRejected CredentialStatus = "rejected"
	// CredentialStatusExpired is declared for persisted compatibility but no
	// code path transitions into it. An expiry sweep comparing
	// metadata.expirationDate to the current time is an open product decision.
	CredentialStatusExpired CredentialStatus = "expired"
)

// CredentialFormat is the serialization format of a verifiable credential
type CredentialFormat string

const (
	CredentialFormatJWT    CredentialFormat = "jwt"
	CredentialFormatJSONLD CredentialFormat = "json-ld"
	CredentialFormatSDJWT  CredentialFormat = "sd-jwt"
)

// KeyType enumerates supported asymmetric key algorithms
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
	KeyTypeSecp256r1 KeyType = "secp256r1"
	KeyTypeRSA       KeyType = "rsa"
	KeyTypeX25519    KeyType = "x25519"
)

// SSIStandard enumerates credential/identifier standards a region may support
type SSIStandard string

const (
	StandardW3CVC     SSIStandard = "w3c-vc"
	StandardW3CDID    SSIStandard = "w3c-did"
	StandardSDJWT     SSIStandard = "sd-jwt"
	StandardOpenID4VC SSIStandard = "openid4vc"
	StandardSovrin    SSIStandard = "sovrin"
	StandardCheqd     SSIStandard = "cheqd"
	StandardION       SSIStandard = "ion"
	StandardKERI      SSIStandard = "keri"
)

// ProofMetadata carries the document-level attributes of a submitted proof
type ProofMetadata struct {
	Issuer           string                 `json:"issuer"`
	IssuedDate       time.Time              `json:"issuedDate"`
	ExpirationDate   *time.Time             `json:"expirationDate,omitempty"`
	DocumentNumber   string                 `json:"documentNumber"`
	HolderName       string                 `json:"holderName,omitempty"`
	HolderDOB        *time.Time             `json:"holderDOB,omitempty"`
	AdditionalFields map[string]interface{} `json:"additionalFields,omitempty"`
}

// DigitalSignature is the signature envelope attached to a credential
type DigitalSignature struct {
	Signature string    `json:"signature"`
	Algorithm string    `json:"algorithm"`
	PublicKey string    `json:"publicKey"`
	Timestamp time.Time `json:"timestamp"`
	KeyID     string    `json:"keyId,omitempty"`
	KeyType   KeyType   `json:"keyType,omitempty"`
}

// UnsignedSignatureSentinel marks credentials stored while signing was
// unavailable. Submission is never aborted for a transient signing failure.
const UnsignedSignatureSentinel = "unable-to-generate-signature"

// VerificationResult is one append-only entry in a credential's history
type VerificationResult struct {
	IsValid          bool                   `json:"isValid"`
	VerifiedAt       time.Time              `json:"verifiedAt"`
	VerifiedBy       string                 `json:"verifiedBy"`
	VerificationNotes string                `json:"verificationNotes,omitempty"`
	VerificationData map[string]interface{} `json:"verificationData,omitempty"`
}

// SelfSovereignData is the protocol envelope stored with every credential
type SelfSovereignData struct {
	SubmittedAt  time.Time `json:"submittedAt"`
	Version      string    `json:"version"`
	Protocol     string    `json:"protocol"`
	CredentialID string    `json:"credentialId"`
}

// VerificationMethod describes one public key entry of a DID document
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
	PublicKeyPem       string `json:"publicKeyPem,omitempty"`
}

// DIDDocument is a W3C DID document exported for the service signing key
type DIDDocument struct {
	Context              []string             `json:"@context"`
	ID                   string               `json:"id"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Authentication       []string             `json:"authentication"`
	AssertionMethod      []string             `json:"assertionMethod"`
	CapabilityInvocation []string             `json:"capabilityInvocation"`
	CapabilityDelegation []string             `json:"capabilityDelegation"`
}

// VerifiableCredential is the persisted credential entity
type VerifiableCredential struct {
	ID                   string               `json:"id"`
	UserID               string               `json:"userId"`
	ProofType            ProofType            `json:"proofType"`
	Status               CredentialStatus     `json:"status"`
	Metadata             ProofMetadata        `json:"metadata"`
	DocumentHash         string               `json:"documentHash"`
	EncryptedDocumentURL string               `json:"encryptedDocumentUrl,omitempty"`
	ThumbnailURL         string               `json:"thumbnailUrl,omitempty"`
	DigitalSignature     *DigitalSignature    `json:"digitalSignature,omitempty"`
	VerificationHistory  []VerificationResult `json:"verificationHistory"`
	IsRevoked            bool                 `json:"isRevoked"`
	RevokedAt            *time.Time           `json:"revokedAt,omitempty"`
	RevokedReason        string               `json:"revokedReason,omitempty"`
	SelfSovereignData    *SelfSovereignData   `json:"selfSovereignData,omitempty"`
	DIDContext           *DIDDocument         `json:"didContext,omitempty"`
	DIDUrl               string               `json:"didUrl,omitempty"`
	CredentialFormat     CredentialFormat     `json:"credentialFormat"`
	RegionCode           string               `json:"regionCode,omitempty"`
	GovernanceFramework  string               `json:"governanceFramework,omitempty"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

// ProofSubmission is a transient proof document handed to credential intake.
// Document carries raw bytes; JSON clients submit DocumentBase64 instead.
type ProofSubmission struct {
	Type           ProofType         `json:"type"`
	Document       []byte            `json:"-"`
	DocumentBase64 string            `json:"document,omitempty"`
	Metadata       ProofMetadata     `json:"metadata"`
	Signature      *DigitalSignature `json:"signature,omitempty"`
	RegionCode     string            `json:"regionCode,omitempty"`
}

// VerificationRequest is a reviewer's decision on a pending credential
type VerificationRequest struct {
	VerifiedBy       string                 `json:"verifiedBy"`
	IsValid          bool                   `json:"isValid"`
	Notes            string                 `json:"notes,omitempty"`
	VerificationData map[string]interface{} `json:"verificationData,omitempty"`
}

// CredentialCheck is the result of an eligibility query
type CredentialCheck struct {
	HasValid     bool        `json:"hasValid"`
	MissingTypes []ProofType `json:"missingTypes"`
}

// AccountActivation is issued once a user's required proofs are all verified
type AccountActivation struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SigningKeyInfo is the exportable (public) description of the service keypair
type SigningKeyInfo struct {
	KeyID       string       `json:"keyId"`
	KeyType     KeyType      `json:"keyType"`
	Algorithm   string       `json:"algorithm"`
	GeneratedAt time.Time    `json:"generatedAt"`
	DIDDocument *DIDDocument `json:"didDocument,omitempty"`
}
