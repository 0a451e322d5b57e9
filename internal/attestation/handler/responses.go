package handler

import "dossier/internal/attestation/models"

type voteResponse struct {
	Attestation *models.Attestation `json:"attestation"`
	Invalidated []string            `json:"invalidated"`
}

type removeResponse struct {
	Invalidated []string `json:"invalidated"`
}
