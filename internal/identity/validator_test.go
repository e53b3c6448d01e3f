package identity

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medichain/ssi-custody/pkg/types"
)

func validProof(proofType types.ProofType, documentNumber string) *types.ProofSubmission {
	return &types.ProofSubmission{
		Type:     proofType,
		Document: []byte("document bytes"),
		Metadata: types.ProofMetadata{
			Issuer:         "Authority",
			IssuedDate:     time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC),
			DocumentNumber: documentNumber,
		},
	}
}

func TestValidateProof_AcceptsKnownTypes(t *testing.T) {
	tests := []struct {
		proofType      types.ProofType
		documentNumber string
	}{
		{types.ProofTypePassport, "A1234567"},
		{types.ProofTypePANCard, "ABCDE1234F"},
		{types.ProofTypeAadhaar, "123412341234"},
		{types.ProofTypeVoterID, "ABC1234567"},
		{types.ProofTypeGovernmentID, "anything-goes-here"},
		{types.ProofTypeMedicalLicense, "MH/123/2020"},
		{types.ProofTypeOther, "misc-001"},
	}

	for _, tt := range tests {
		err := ValidateProof(validProof(tt.proofType, tt.documentNumber))
		assert.NoError(t, err, "%s / %s should be accepted", tt.proofType, tt.documentNumber)
	}
}

func TestValidateProof_ImperfectMetadataStillAccepted(t *testing.T) {
	// Intake only gates on shape; metadata quality is judged by
	// ValidateGovernmentProof and handled at review time.
	shortAadhaar := validProof(types.ProofTypeAadhaar, "1234")
	assert.NoError(t, ValidateProof(shortAadhaar))

	malformedPassport := validProof(types.ProofTypePassport, "abc123")
	assert.NoError(t, ValidateProof(malformedPassport))

	missingIssuer := validProof(types.ProofTypeGovernmentID, "gov-1")
	missingIssuer.Metadata.Issuer = ""
	assert.NoError(t, ValidateProof(missingIssuer))

	missingNumber := validProof(types.ProofTypeGovernmentID, "")
	assert.NoError(t, ValidateProof(missingNumber))

	expiredBeforeIssue := validProof(types.ProofTypePassport, "A1234567")
	expired := expiredBeforeIssue.Metadata.IssuedDate.Add(-24 * time.Hour)
	expiredBeforeIssue.Metadata.ExpirationDate = &expired
	assert.NoError(t, ValidateProof(expiredBeforeIssue))
}

func TestValidateProof_UnknownType(t *testing.T) {
	err := ValidateProof(validProof("carrier_pigeon", "x"))
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidProofType))

	// The either-or eligibility marker is not submittable
	err = ValidateProof(validProof(types.ProofTypeGovernmentIDAlternative, "x"))
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidProofType))
}

func TestValidateProof_DecodesBase64Document(t *testing.T) {
	proof := validProof(types.ProofTypeGovernmentID, "gov-1")
	proof.Document = nil
	proof.DocumentBase64 = base64.StdEncoding.EncodeToString([]byte("decoded bytes"))

	assert.NoError(t, ValidateProof(proof))
	assert.Equal(t, []byte("decoded bytes"), proof.Document)

	bad := validProof(types.ProofTypeGovernmentID, "gov-1")
	bad.Document = nil
	bad.DocumentBase64 = "!!!not base64!!!"
	assert.Error(t, ValidateProof(bad))
}

func TestValidateProof_SizeGate(t *testing.T) {
	proof := validProof(types.ProofTypeGovernmentID, "gov-1")
	proof.Document = make([]byte, maxDocumentSize+1)

	err := ValidateProof(proof)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeDocumentTooLarge))
}

func TestValidateGovernmentProof_PerTypeRules(t *testing.T) {
	dob := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	issued := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2033, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		proofType types.ProofType
		metadata  types.ProofMetadata
		want      bool
	}{
		{"aadhaar needs number and issuer", types.ProofTypeAadhaar,
			types.ProofMetadata{DocumentNumber: "1234", Issuer: "UIDAI"}, true},
		{"aadhaar missing issuer", types.ProofTypeAadhaar,
			types.ProofMetadata{DocumentNumber: "123412341234"}, false},
		{"passport complete", types.ProofTypePassport,
			types.ProofMetadata{DocumentNumber: "A1234567", HolderName: "Asha Rao",
				HolderDOB: &dob, ExpirationDate: &expires}, true},
		{"passport two-letter prefix", types.ProofTypePassport,
			types.ProofMetadata{DocumentNumber: "AB123456", HolderName: "Asha Rao",
				HolderDOB: &dob, ExpirationDate: &expires}, true},
		{"passport malformed number", types.ProofTypePassport,
			types.ProofMetadata{DocumentNumber: "abc123", HolderName: "Asha Rao",
				HolderDOB: &dob, ExpirationDate: &expires}, false},
		{"passport missing expiration", types.ProofTypePassport,
			types.ProofMetadata{DocumentNumber: "A1234567", HolderName: "Asha Rao",
				HolderDOB: &dob}, false},
		{"driving license complete", types.ProofTypeDrivingLicense,
			types.ProofMetadata{DocumentNumber: "DL-0420110012345", HolderName: "Asha Rao",
				HolderDOB: &dob, ExpirationDate: &expires}, true},
		{"driving license missing dob", types.ProofTypeDrivingLicense,
			types.ProofMetadata{DocumentNumber: "DL-0420110012345", HolderName: "Asha Rao",
				ExpirationDate: &expires}, false},
		{"pan complete", types.ProofTypePANCard,
			types.ProofMetadata{DocumentNumber: "ABCDE1234F", HolderName: "Asha Rao",
				HolderDOB: &dob}, true},
		{"pan malformed number", types.ProofTypePANCard,
			types.ProofMetadata{DocumentNumber: "ABCD51234F", HolderName: "Asha Rao",
				HolderDOB: &dob}, false},
		{"voter id complete", types.ProofTypeVoterID,
			types.ProofMetadata{DocumentNumber: "ABC1234567", HolderName: "Asha Rao",
				HolderDOB: &dob, Issuer: "ECI"}, true},
		{"voter id missing issuer", types.ProofTypeVoterID,
			types.ProofMetadata{DocumentNumber: "ABC1234567", HolderName: "Asha Rao",
				HolderDOB: &dob}, false},
		{"medical license with expiration", types.ProofTypeMedicalLicense,
			types.ProofMetadata{DocumentNumber: "MH/123/2020", HolderName: "Dr. Rao",
				Issuer: "MCI", IssuedDate: issued, ExpirationDate: &expires}, true},
		{"medical license with validity period", types.ProofTypeMedicalLicense,
			types.ProofMetadata{DocumentNumber: "MH/123/2020", HolderName: "Dr. Rao",
				Issuer: "MCI", IssuedDate: issued,
				AdditionalFields: map[string]interface{}{"validityPeriod": "5y"}}, true},
		{"medical license without validity", types.ProofTypeMedicalLicense,
			types.ProofMetadata{DocumentNumber: "MH/123/2020", HolderName: "Dr. Rao",
				Issuer: "MCI", IssuedDate: issued}, false},
		{"generic fallback complete", types.ProofTypeGovernmentID,
			types.ProofMetadata{DocumentNumber: "gov-1", Issuer: "Authority",
				IssuedDate: issued}, true},
		{"generic fallback missing issued date", types.ProofTypeOther,
			types.ProofMetadata{DocumentNumber: "misc-1", Issuer: "Authority"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateGovernmentProof(tt.proofType, tt.metadata))
		})
	}
}
