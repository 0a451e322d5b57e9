package handler

import "dossier/internal/reports/models"

type createResponse struct {
	Report      *models.Report `json:"report"`
	Invalidated []string       `json:"invalidated"`
}
