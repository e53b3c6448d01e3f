package identity

import (
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/medichain/ssi-custody/pkg/types"
)

// maxDocumentSize bounds decoded proof documents before hashing or upload
const maxDocumentSize = 30 * 1024 * 1024

var (
	passportNumberPattern = regexp.MustCompile(`^[A-Z]{1,2}\d{6,8}$`)
	panNumberPattern      = regexp.MustCompile(`^[A-Z]{5}\d{4}[A-Z]{1}$`)
)

// ValidateProof gates a proof submission on shape alone: a known type and
// a document that decodes and fits the size bound. The document is decoded
// in place when only its base64 form was supplied. Metadata quality is
// judged separately by ValidateGovernmentProof and never blocks intake;
// an imperfect proof is stored pending and left to reviewer verification.
func ValidateProof(proof *types.ProofSubmission) error {
	if proof == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "proof is required", nil)
	}

	if !types.IsKnownProofType(proof.Type) {
		return types.NewValidationError(types.ErrCodeInvalidProofType,
			fmt.Sprintf("unknown proof type: %q", proof.Type),
			map[string]interface{}{"proofType": proof.Type})
	}

	if len(proof.Document) == 0 && proof.DocumentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(proof.DocumentBase64)
		if err != nil {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				"document is not valid base64", nil)
		}
		proof.Document = decoded
	}

	if len(proof.Document) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"proof document is required", nil)
	}
	if len(proof.Document) > maxDocumentSize {
		return types.NewValidationError(types.ErrCodeDocumentTooLarge,
			fmt.Sprintf("proof document exceeds %d bytes", maxDocumentSize),
			map[string]interface{}{"size": len(proof.Document)})
	}

	return nil
}

// ValidateGovernmentProof reports whether a proof's metadata satisfies the
// document rules for its type. The result feeds logging and review only;
// a failing proof is still stored pending.
func ValidateGovernmentProof(proofType types.ProofType, metadata types.ProofMetadata) bool {
	switch proofType {
	case types.ProofTypeAadhaar:
		return metadata.DocumentNumber != "" && metadata.Issuer != ""

	case types.ProofTypePassport:
		return metadata.DocumentNumber != "" &&
			metadata.HolderName != "" &&
			metadata.HolderDOB != nil &&
			metadata.ExpirationDate != nil &&
			passportNumberPattern.MatchString(metadata.DocumentNumber)

	case types.ProofTypeDrivingLicense:
		return metadata.DocumentNumber != "" &&
			metadata.HolderName != "" &&
			metadata.HolderDOB != nil &&
			metadata.ExpirationDate != nil

	case types.ProofTypePANCard:
		return metadata.DocumentNumber != "" &&
			metadata.HolderName != "" &&
			metadata.HolderDOB != nil &&
			panNumberPattern.MatchString(metadata.DocumentNumber)

	case types.ProofTypeVoterID:
		return metadata.DocumentNumber != "" &&
			metadata.HolderName != "" &&
			metadata.HolderDOB != nil &&
			metadata.Issuer != ""

	case types.ProofTypeMedicalLicense:
		hasValidity := metadata.ExpirationDate != nil
		if !hasValidity {
			_, hasValidity = metadata.AdditionalFields["validityPeriod"]
		}
		return metadata.DocumentNumber != "" &&
			metadata.HolderName != "" &&
			metadata.Issuer != "" &&
			!metadata.IssuedDate.IsZero() &&
			hasValidity

	default:
		return metadata.DocumentNumber != "" &&
			metadata.Issuer != "" &&
			!metadata.IssuedDate.IsZero()
	}
}
