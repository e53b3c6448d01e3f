package identity

import "github.com/medichain/ssi-custody/pkg/types"

// requirement is one credential slot a role must fill. A slot with
// alternatives is satisfied by any one of them; its Missing marker is
// reported when none are present.
type requirement struct {
	alternatives []types.ProofType
	missing      types.ProofType
}

func single(t types.ProofType) requirement {
	return requirement{alternatives: []types.ProofType{t}, missing: t}
}

var governmentIdentity = requirement{
	alternatives: []types.ProofType{types.ProofTypeGovernmentID, types.ProofTypeAadhaar},
	missing:      types.ProofTypeGovernmentIDAlternative,
}

// roleRequirements maps account roles to the credential slots each must fill
var roleRequirements = map[string][]requirement{
	"doctor": {
		governmentIdentity,
		single(types.ProofTypeMedicalLicense),
		single(types.ProofTypeEducationCertificate),
	},
	"hospital_admin": {
		governmentIdentity,
		single(types.ProofTypeProfessionalLicense),
		single(types.ProofTypeHospitalAffiliation),
	},
	"patient": {
		governmentIdentity,
	},
	"system_admin": {
		governmentIdentity,
		single(types.ProofTypeProfessionalLicense),
	},
}

// requirementsForRole returns a role's credential slots; unknown roles
// get the patient baseline.
func requirementsForRole(role string) []requirement {
	if reqs, ok := roleRequirements[role]; ok {
		return reqs
	}
	return roleRequirements["patient"]
}
