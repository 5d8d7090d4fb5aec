package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tagboxapp/tagbox-server/internal/service"
)

func (s *Server) registerSecurityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "verifyEmail",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/security/verify-email",
		Summary:     "Verify email",
		Description: "Consumes an emailed verification token and marks the account verified",
		Tags:        []string{"Security"},
	}, s.handleVerifyEmail)

	huma.Register(s.api, huma.Operation{
		OperationID: "resendVerification",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/security/verification-token",
		Summary:     "Resend verification email",
		Description: "Issues a new verification token. The response never reveals whether the account exists.",
		Tags:        []string{"Security"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleResendVerification)

	huma.Register(s.api, huma.Operation{
		OperationID: "forgottenPassword",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/security/forgotten-password",
		Summary:     "Request password reset",
		Description: "Emails a password reset token. The response never reveals whether the account exists.",
		Tags:        []string{"Security"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleForgottenPassword)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetPassword",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/security/reset-password",
		Summary:     "Reset password",
		Description: "Sets a new password using a reset token and signs the user out everywhere",
		Tags:        []string{"Security"},
	}, s.handleResetPassword)
}

// === DTOs ===

// TokenInput carries an emailed token.
type TokenInput struct {
	Body struct {
		Token string `json:"token" doc:"Token from the email"`
	}
}

// EmailInput names the account an email flow is for.
type EmailInput struct {
	Body struct {
		Email string `json:"email" maxLength:"254" doc:"Account email address"`
	}
}

// ResetPasswordInput sets a new password.
type ResetPasswordInput struct {
	Body struct {
		Token    string `json:"token" doc:"Password reset token from the email"`
		Password string `json:"password" maxLength:"256" doc:"New password"`
	}
}

// === Handlers ===

func (s *Server) handleVerifyEmail(ctx context.Context, input *TokenInput) (*MessageOutput, error) {
	msg, err := s.services.Security.VerifyEmail(ctx, service.TokenRequest{Token: input.Body.Token})
	if err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: msg}}, nil
}

func (s *Server) handleResendVerification(ctx context.Context, input *EmailInput) (*MessageOutput, error) {
	msg, err := s.services.Security.ResendVerification(ctx, service.EmailRequest{Email: input.Body.Email})
	if err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: msg}}, nil
}

func (s *Server) handleForgottenPassword(ctx context.Context, input *EmailInput) (*MessageOutput, error) {
	msg, err := s.services.Security.RequestPasswordReset(ctx, service.EmailRequest{Email: input.Body.Email})
	if err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: msg}}, nil
}

func (s *Server) handleResetPassword(ctx context.Context, input *ResetPasswordInput) (*MessageOutput, error) {
	msg, err := s.services.Security.ResetPassword(ctx, service.ResetPasswordRequest{
		Token:    input.Body.Token,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: msg}}, nil
}
