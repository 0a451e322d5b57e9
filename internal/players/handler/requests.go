package handler

import (
	dErrors "dossier/pkg/domain-errors"
)

// CommentRequest is the body for POST /players/{playerID}/comments.
type CommentRequest struct {
	Body string `json:"body"`
}

// Validate only checks presence; length and trimming belong to the model.
func (r *CommentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Body == "" {
		return dErrors.New(dErrors.CodeValidation, "body is required")
	}
	return nil
}

// TagRequest is the body for POST /players/{playerID}/tags.
type TagRequest struct {
	Label string `json:"label"`
}

func (r *TagRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Label == "" {
		return dErrors.New(dErrors.CodeValidation, "label is required")
	}
	return nil
}
