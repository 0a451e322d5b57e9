package identitysource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// flexBool accepts the upstream success flag in any of the encodings it has been
// observed to use: true/false, 1/0, "true"/"1".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(raw) {
	case "true", "1":
		*b = true
	case "false", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("unrecognized success flag %q", raw)
	}
	return nil
}

type profileEnvelope struct {
	Success flexBool        `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    *profilePayload `json:"data"`
}

type profilePayload struct {
	ID            string               `json:"id"`
	Handle        string               `json:"handle"`
	DisplayName   string               `json:"display_name"`
	Avatar        string               `json:"avatar"`
	Organizations *[]membershipPayload `json:"organizations"`
}

type membershipPayload struct {
	SID  string   `json:"sid"`
	Name string   `json:"name"`
	Rank string   `json:"rank"`
	Main flexBool `json:"main"`
}

// parseProfileResponse converts an upstream HTTP response into an Identity.
// It is the only place that knows the upstream's wire format.
func parseProfileResponse(sourceID string, status int, body []byte) (*Identity, error) {
	switch {
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, NewSourceError(ErrorAuthentication, sourceID, fmt.Sprintf("upstream returned %d", status), nil)
	case status == http.StatusTooManyRequests:
		return nil, NewSourceError(ErrorRateLimited, sourceID, "upstream rate limited", nil)
	case status >= 500:
		return nil, NewSourceError(ErrorOutage, sourceID, fmt.Sprintf("upstream returned %d", status), nil)
	case status != http.StatusOK:
		return nil, NewSourceError(ErrorContractMismatch, sourceID, fmt.Sprintf("unexpected status %d", status), nil)
	}

	var env profileEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewSourceError(ErrorBadData, sourceID, "malformed response body", err)
	}
	if !env.Success || env.Data == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(env.Data.ID) == "" || strings.TrimSpace(env.Data.Handle) == "" {
		return nil, NewSourceError(ErrorContractMismatch, sourceID, "profile without id or handle", nil)
	}

	ident := &Identity{
		ExternalID:  strings.TrimSpace(env.Data.ID),
		Handle:      strings.TrimSpace(env.Data.Handle),
		DisplayName: strings.TrimSpace(env.Data.DisplayName),
		AvatarURL:   strings.TrimSpace(env.Data.Avatar),
	}
	if env.Data.Organizations != nil {
		ident.Organizations = make([]Membership, 0, len(*env.Data.Organizations))
		seen := make(map[string]bool, len(*env.Data.Organizations))
		for _, m := range *env.Data.Organizations {
			sid := strings.TrimSpace(m.SID)
			if sid == "" || seen[sid] {
				continue
			}
			seen[sid] = true
			ident.Organizations = append(ident.Organizations, Membership{
				SID:  sid,
				Name: strings.TrimSpace(m.Name),
				Rank: strings.TrimSpace(m.Rank),
				Main: bool(m.Main),
			})
		}
	}
	return ident, nil
}
