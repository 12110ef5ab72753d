package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"channel-gateway/auth"
	"channel-gateway/contract"
	"channel-gateway/domain"
	"channel-gateway/errors"
)

// AdminService gates privilege escalation. Every attempt, granted or
// refused, lands in the audit trail; there is no unauthenticated path
// to an elevated role.
type AdminService struct {
	log            *slog.Logger
	verifier       *auth.Verifier
	tokens         *auth.TokenStore
	audit          contract.AuditTrail
	credentialHash string
}

func NewAdminService(log *slog.Logger, verifier *auth.Verifier, tokens *auth.TokenStore, audit contract.AuditTrail, credentialHash string) *AdminService {
	return &AdminService{
		log:            log,
		verifier:       verifier,
		tokens:         tokens,
		audit:          audit,
		credentialHash: credentialHash,
	}
}

// GrantRole promotes a user by minting a role-bearing session token for
// them. The caller must present a valid session token (the actor being
// audited) and the admin credential.
func (s *AdminService) GrantRole(ctx context.Context, actorToken, credential string, req auth.RoleGrantRequest) (string, error) {
	actor, err := s.verifier.Verify(ctx, actorToken)
	if err != nil {
		s.record("anonymous", req, domain.OutcomeRefused, "invalid session")
		return "", err
	}

	match, err := auth.CompareCredential(credential, s.credentialHash)
	if err != nil || !match {
		s.record(actor.ID, req, domain.OutcomeRefused, "bad admin credential")
		return "", errors.ErrForbidden
	}

	if err := auth.ValidateRoleGrant(req); err != nil {
		s.record(actor.ID, req, domain.OutcomeRefused, err.Error())
		return "", err
	}

	token, err := s.tokens.Issue(domain.Principal{ID: req.UserID}, []string{req.Role})
	if err != nil {
		s.record(actor.ID, req, domain.OutcomeRefused, "token generation failed")
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}

	s.record(actor.ID, req, domain.OutcomeGranted, "")
	return token, nil
}

func (s *AdminService) record(actor string, req auth.RoleGrantRequest, outcome, detail string) {
	entry := domain.AuditEntry{
		At:      time.Now().UTC(),
		Actor:   actor,
		Action:  "role.grant",
		Subject: fmt.Sprintf("%s:%s", req.UserID, req.Role),
		Outcome: outcome,
		Detail:  detail,
	}
	if err := s.audit.Record(entry); err != nil {
		// Losing audit entries must not block the action, but it is
		// never silent.
		s.log.Error("Audit record failed", "action", entry.Action, "subject", entry.Subject, "error", err)
	}
}
