package handler

import (
	"dossier/internal/players/models"
	"dossier/internal/players/service"
)

// Every mutating endpoint reports the external ids it invalidated, including
// no-op calls.

type resolutionResponse struct {
	Player      *models.Player `json:"player"`
	Outcome     models.Outcome `json:"outcome"`
	Invalidated []string       `json:"invalidated"`
}

func toResolutionResponse(res *service.Resolution) resolutionResponse {
	return resolutionResponse{
		Player:      res.Player,
		Outcome:     res.Outcome,
		Invalidated: nonNil(res.Signal.ExternalIDs),
	}
}

type searchResponse struct {
	Data        []models.SearchHit `json:"data"`
	Invalidated []string           `json:"invalidated"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

type mutationResponse struct {
	Invalidated []string `json:"invalidated"`
}

type commentResponse struct {
	Comment     *models.Comment `json:"comment"`
	Invalidated []string        `json:"invalidated"`
}

type tagResponse struct {
	Tag         *models.Tag `json:"tag"`
	Invalidated []string    `json:"invalidated"`
}
