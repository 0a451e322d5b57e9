package handler

import (
	"dossier/internal/reports/models"
	"dossier/internal/reports/service"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
)

// CreateReportRequest is the body for POST /reports.
type CreateReportRequest struct {
	Kind            string `json:"kind"`
	MainPlayerID    string `json:"main_player_id"`
	Body            string `json:"body"`
	OrgName         string `json:"org_name"`
	SecondaryHandle string `json:"secondary_handle"`

	kind         models.Kind
	mainPlayerID id.PlayerID
}

// Validate parses the shared fields. Kind-specific payload rules live in the
// service.
func (r *CreateReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	kind, err := models.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	if r.MainPlayerID == "" {
		return dErrors.New(dErrors.CodeValidation, "main_player_id is required")
	}
	mainPlayerID, err := id.ParsePlayerID(r.MainPlayerID)
	if err != nil {
		return err
	}
	r.kind = kind
	r.mainPlayerID = mainPlayerID
	return nil
}

func (r *CreateReportRequest) toService() service.CreateReportRequest {
	return service.CreateReportRequest{
		Kind:            r.kind,
		MainPlayerID:    r.mainPlayerID,
		Body:            r.Body,
		OrgName:         r.OrgName,
		SecondaryHandle: r.SecondaryHandle,
	}
}
