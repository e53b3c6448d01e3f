package region

import (
	"strings"

	"github.com/medichain/ssi-custody/pkg/types"
)

// Policy describes the SSI configuration mandated for a jurisdiction
type Policy struct {
	Code                   string                   `json:"code"`
	Name                   string                   `json:"name"`
	Standards              []types.SSIStandard      `json:"standards"`
	DIDMethods             []string                 `json:"didMethods"`
	CredentialFormats      []types.CredentialFormat `json:"credentialFormats"`
	PreferredFormat        types.CredentialFormat   `json:"preferredFormat"`
	PreferredDIDMethod     string                   `json:"preferredDidMethod"`
	GovernanceFramework    string                   `json:"governanceFramework"`
	AcceptedProofTypes     []types.ProofType        `json:"acceptedProofTypes"`
	KeyTypes               []types.KeyType          `json:"keyTypes"`
	PreferredKeyType       types.KeyType            `json:"preferredKeyType"`
	ResolverEndpoints      []string                 `json:"resolverEndpoints"`
	RegulatoryRequirements map[string]bool          `json:"regulatoryRequirements,omitempty"`
}

// DefaultRegion is used when a requested region code has no policy
const DefaultRegion = "global"

var policies = map[string]Policy{
	"global": {
		Code:      "global",
		Name:      "Global",
		Standards: []types.SSIStandard{types.StandardW3CVC, types.StandardW3CDID, types.StandardOpenID4VC},
		DIDMethods: []string{"key", "web", "ion"},
		CredentialFormats: []types.CredentialFormat{
			types.CredentialFormatJSONLD, types.CredentialFormatJWT,
		},
		PreferredFormat:     types.CredentialFormatJSONLD,
		PreferredDIDMethod:  "key",
		GovernanceFramework: "W3C Verifiable Credentials",
		AcceptedProofTypes: []types.ProofType{
			types.ProofTypeGovernmentID, types.ProofTypePassport,
			types.ProofTypeDrivingLicense, types.ProofTypeMedicalLicense,
			types.ProofTypeEducationCertificate, types.ProofTypeProfessionalLicense,
			types.ProofTypeHospitalAffiliation, types.ProofTypeOther,
		},
		KeyTypes: []types.KeyType{
			types.KeyTypeEd25519, types.KeyTypeSecp256k1,
			types.KeyTypeSecp256r1, types.KeyTypeRSA,
		},
		PreferredKeyType: types.KeyTypeEd25519,
		ResolverEndpoints: []string{
			"https://resolver.identity.foundation",
			"https://did.exchange.foundation",
			"https://resolver.cheqd.net",
		},
	},
	"in": {
		Code:      "in",
		Name:      "India",
		Standards: []types.SSIStandard{types.StandardW3CVC, types.StandardW3CDID, types.StandardSovrin},
		DIDMethods: []string{"key", "web", "sovrin"},
		CredentialFormats: []types.CredentialFormat{
			types.CredentialFormatJSONLD, types.CredentialFormatJWT,
		},
		PreferredFormat:     types.CredentialFormatJSONLD,
		PreferredDIDMethod:  "key",
		GovernanceFramework: "India Stack / DEPA",
		AcceptedProofTypes: []types.ProofType{
			types.ProofTypeAadhaar, types.ProofTypePANCard, types.ProofTypeVoterID,
			types.ProofTypeGovernmentID, types.ProofTypePassport,
			types.ProofTypeDrivingLicense, types.ProofTypeMedicalLicense,
			types.ProofTypeEducationCertificate, types.ProofTypeProfessionalLicense,
			types.ProofTypeHospitalAffiliation, types.ProofTypeOther,
		},
		KeyTypes: []types.KeyType{
			types.KeyTypeEd25519, types.KeyTypeSecp256k1, types.KeyTypeRSA,
		},
		PreferredKeyType: types.KeyTypeEd25519,
		ResolverEndpoints: []string{
			"https://resolver.identity.foundation",
			"https://did.india.gov.in/resolver",
			"https://resolver.cheqd.net",
		},
		RegulatoryRequirements: map[string]bool{
			"dataLocalization":           true,
			"aadhaarValidation":          true,
			"medicalCouncilVerification": true,
		},
	},
	"eu": {
		Code:      "eu",
		Name:      "European Union",
		Standards: []types.SSIStandard{types.StandardW3CVC, types.StandardSDJWT, types.StandardOpenID4VC},
		DIDMethods: []string{"key", "web", "cheqd"},
		CredentialFormats: []types.CredentialFormat{
			types.CredentialFormatSDJWT, types.CredentialFormatJSONLD,
		},
		PreferredFormat:     types.CredentialFormatSDJWT,
		PreferredDIDMethod:  "web",
		GovernanceFramework: "eIDAS 2.0 / EUDI Wallet",
		AcceptedProofTypes: []types.ProofType{
			types.ProofTypeGovernmentID, types.ProofTypePassport,
			types.ProofTypeDrivingLicense, types.ProofTypeMedicalLicense,
			types.ProofTypeEducationCertificate, types.ProofTypeProfessionalLicense,
			types.ProofTypeHospitalAffiliation, types.ProofTypeOther,
		},
		KeyTypes: []types.KeyType{
			types.KeyTypeSecp256r1, types.KeyTypeEd25519, types.KeyTypeRSA,
		},
		PreferredKeyType: types.KeyTypeSecp256r1,
		ResolverEndpoints: []string{
			"https://resolver.identity.foundation",
			"https://resolver.ebsi.eu",
			"https://resolver.cheqd.net",
		},
		RegulatoryRequirements: map[string]bool{
			"gdprCompliance":  true,
			"eIDASCompliance": true,
			"dataPortability": true,
		},
	},
	"us": {
		Code:      "us",
		Name:      "United States",
		Standards: []types.SSIStandard{types.StandardW3CVC, types.StandardW3CDID, types.StandardION},
		DIDMethods: []string{"key", "web", "ion"},
		CredentialFormats: []types.CredentialFormat{
			types.CredentialFormatJSONLD, types.CredentialFormatJWT,
		},
		PreferredFormat:     types.CredentialFormatJSONLD,
		PreferredDIDMethod:  "ion",
		GovernanceFramework: "HIPAA-aligned trust framework",
		AcceptedProofTypes: []types.ProofType{
			types.ProofTypeGovernmentID, types.ProofTypePassport,
			types.ProofTypeDrivingLicense, types.ProofTypeMedicalLicense,
			types.ProofTypeEducationCertificate, types.ProofTypeProfessionalLicense,
			types.ProofTypeHospitalAffiliation, types.ProofTypeOther,
		},
		KeyTypes: []types.KeyType{
			types.KeyTypeSecp256k1, types.KeyTypeEd25519, types.KeyTypeRSA,
		},
		PreferredKeyType: types.KeyTypeSecp256k1,
		ResolverEndpoints: []string{
			"https://resolver.identity.foundation",
			"https://did.us.gov/resolver",
			"https://ion.io/resolver",
		},
		RegulatoryRequirements: map[string]bool{
			"hipaaCompliance":       true,
			"federalIdVerification": true,
			"stateSpecificRules":    true,
		},
	},
}

// Resolve returns the policy for a region code, falling back to the
// global policy for unknown or empty codes. The second return reports
// whether the code matched a configured region.
func Resolve(code string) (Policy, bool) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if p, ok := policies[normalized]; ok {
		return p, true
	}
	return policies[DefaultRegion], false
}

// Codes lists all configured region codes
func Codes() []string {
	codes := make([]string, 0, len(policies))
	for code := range policies {
		codes = append(codes, code)
	}
	return codes
}

// AcceptsProofType reports whether the region's policy admits the proof type
func (p Policy) AcceptsProofType(t types.ProofType) bool {
	for _, accepted := range p.AcceptedProofTypes {
		if t == accepted {
			return true
		}
	}
	return false
}

// SupportsDIDMethod reports whether the region's policy allows the DID method
func (p Policy) SupportsDIDMethod(method string) bool {
	for _, m := range p.DIDMethods {
		if m == method {
			return true
		}
	}
	return false
}

// SupportsStandard reports whether the region's policy allows the SSI standard
func (p Policy) SupportsStandard(standard types.SSIStandard) bool {
	for _, s := range p.Standards {
		if s == standard {
			return true
		}
	}
	return false
}

// SupportsKeyType reports whether the region's policy allows the key type
func (p Policy) SupportsKeyType(keyType types.KeyType) bool {
	for _, k := range p.KeyTypes {
		if k == keyType {
			return true
		}
	}
	return false
}

// AllPolicies returns every configured region policy
func AllPolicies() []Policy {
	all := make([]Policy, 0, len(policies))
	for _, p := range policies {
		all = append(all, p)
	}
	return all
}
