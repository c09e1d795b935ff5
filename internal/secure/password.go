package secure

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/imedia765/memberhub/internal/notify"
)

// MinPasswordLength is the shortest accepted new password.
const MinPasswordLength = 8

// PasswordChange is the payload for the password change mutation.
type PasswordChange struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// Validate vets the payload before the authority is ever contacted.
func (p PasswordChange) Validate() error {
	if p.CurrentPassword == "" {
		return fmt.Errorf("current password is required")
	}
	if len(p.NewPassword) < MinPasswordLength {
		return fmt.Errorf("new password must be at least %d characters", MinPasswordLength)
	}
	if p.NewPassword != p.ConfirmPassword {
		return fmt.Errorf("password confirmation does not match")
	}
	if p.NewPassword == p.CurrentPassword {
		return fmt.Errorf("new password must differ from the current one")
	}
	return nil
}

// CredentialAuthority performs the actual credential change. The returned
// document is the authority's success report; the executor validates its
// marker before trusting it. Errors are classified with the package
// sentinels.
type CredentialAuthority interface {
	ChangePassword(ctx context.Context, principalID, currentPassword, newPassword string) (map[string]any, error)
}

//go:embed password_response_schema.json
var passwordResponseSchemaJSON string

// NewPasswordExecutor wires the password change operation: payload
// validation, the bounded retry loop, success-marker validation against the
// embedded schema, and an optional post-success continuation (typically
// revoking the principal's other sessions).
func NewPasswordExecutor(credentials CredentialAuthority, notifier notify.Notifier, onSuccess func(ctx context.Context, principalID string)) (*Executor, error) {
	schema, err := compilePasswordResponseSchema()
	if err != nil {
		return nil, err
	}

	op := Operation{
		Name:           "password-change",
		LoadingMessage: "Changing password...",
		SuccessMessage: "Password changed successfully",
		FailureMessage: "Failed to change password",
		ResponseSchema: schema,
		Mutate: func(ctx context.Context, principalID string, payload Payload) (any, error) {
			change, ok := payload.(PasswordChange)
			if !ok {
				return nil, fmt.Errorf("unexpected payload type %T: %w", payload, ErrInvalidInput)
			}
			return credentials.ChangePassword(ctx, principalID, change.CurrentPassword, change.NewPassword)
		},
	}
	if onSuccess != nil {
		op.OnSuccess = func(ctx context.Context, principalID string, _ any) {
			onSuccess(ctx, principalID)
		}
	}
	return NewExecutor(op, notifier), nil
}

func compilePasswordResponseSchema() (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(passwordResponseSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse password response schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource("password_response_schema.json", parsed); err != nil {
		return nil, fmt.Errorf("add password response schema resource: %w", err)
	}
	schema, err := compiler.Compile("password_response_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile password response schema: %w", err)
	}
	return schema, nil
}
