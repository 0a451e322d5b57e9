package handler

import (
	"dossier/internal/attestation/models"
	dErrors "dossier/pkg/domain-errors"
)

// VoteRequest is the body for PUT .../votes.
type VoteRequest struct {
	AttestationType string `json:"attestation_type"`
	Comment         string `json:"comment"`

	attestationType models.Type
}

func (r *VoteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	typ, err := models.ParseType(r.AttestationType)
	if err != nil {
		return err
	}
	r.attestationType = typ
	return nil
}
