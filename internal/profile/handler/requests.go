package handler

import (
	"strings"

	dErrors "unitedhelp/pkg/domain-errors"
)

// DeviceTokenRequest registers a push token for the caller.
type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// Normalize implements httputil.Preparable.
func (r *DeviceTokenRequest) Normalize() {
	r.Token = strings.TrimSpace(r.Token)
}

func (r *DeviceTokenRequest) Validate() error {
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}
