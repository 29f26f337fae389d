package authsdk

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	requiredReason = "required"
	tooLongReason  = "too long"

	maxEmailLength    = 254
	maxNameLength     = 100
	maxPasswordLength = 1024
	maxCodeLength     = 32
	maxTokenLength    = 512
)

// Request validation covers shape only: presence, lengths and formats.
// Password strength is judged server-side by the policy engine.
// Each Validate returns field name to reason, or nil when valid.

func (r RegisterRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateEmail(errs, "email", r.Email)
	name := strings.TrimSpace(r.Name)
	switch {
	case name == "":
		errs["name"] = requiredReason
	case utf8.RuneCountInString(name) > maxNameLength:
		errs["name"] = tooLongReason
	}
	validateSecret(errs, "password", r.Password)
	return orNil(errs)
}

func (r LoginRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(r.Email) == "" {
		errs["email"] = requiredReason
	} else if len(r.Email) > maxEmailLength {
		errs["email"] = tooLongReason
	}
	validateSecret(errs, "password", r.Password)
	return orNil(errs)
}

func (r MFALoginRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateToken(errs, "mfa_token", r.MFAToken)
	validateCode(errs, "code", r.Code)
	return orNil(errs)
}

func (r RefreshRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateToken(errs, "refresh_token", r.RefreshToken)
	return orNil(errs)
}

func (r LogoutRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateToken(errs, "refresh_token", r.RefreshToken)
	return orNil(errs)
}

func (r PasswordValidateRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if len(r.Password) > maxPasswordLength {
		errs["password"] = tooLongReason
	}
	if len(r.Email) > maxEmailLength {
		errs["email"] = tooLongReason
	}
	if utf8.RuneCountInString(r.Name) > maxNameLength {
		errs["name"] = tooLongReason
	}
	return orNil(errs)
}

func (r PasswordChangeRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateSecret(errs, "current_password", r.CurrentPassword)
	validateSecret(errs, "new_password", r.NewPassword)
	return orNil(errs)
}

func (r PasswordConfirmRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateSecret(errs, "password", r.Password)
	return orNil(errs)
}

func (r SetRoleRequest) Validate() map[string]string {
	errs := make(map[string]string)
	switch r.Role {
	case "":
		errs["role"] = requiredReason
	case "admin", "manager", "member":
	default:
		errs["role"] = "must be admin, manager or member"
	}
	return orNil(errs)
}

func (r MFASetupCompleteRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateCode(errs, "code", r.Code)
	validateToken(errs, "setup_token", r.SetupToken)
	return orNil(errs)
}

func (r MFAVerifyRequest) Validate() map[string]string {
	errs := make(map[string]string)
	validateCode(errs, "code", r.Code)
	return orNil(errs)
}

func validateEmail(errs map[string]string, field, v string) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		errs[field] = requiredReason
	case len(v) > maxEmailLength:
		errs[field] = tooLongReason
	default:
		addr, err := mail.ParseAddress(v)
		if err != nil || addr.Address != v {
			errs[field] = "must be a valid email address"
		}
	}
}

func validateSecret(errs map[string]string, field, v string) {
	switch {
	case v == "":
		errs[field] = requiredReason
	case len(v) > maxPasswordLength:
		errs[field] = tooLongReason
	}
}

func validateCode(errs map[string]string, field, v string) {
	switch {
	case strings.TrimSpace(v) == "":
		errs[field] = requiredReason
	case len(v) > maxCodeLength:
		errs[field] = tooLongReason
	}
}

func validateToken(errs map[string]string, field, v string) {
	switch {
	case v == "":
		errs[field] = requiredReason
	case len(v) > maxTokenLength:
		errs[field] = tooLongReason
	}
}

func orNil(errs map[string]string) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
