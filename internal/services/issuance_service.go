package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/MyysticOwl/undergrowth-website/internal/errors"
	"github.com/MyysticOwl/undergrowth-website/internal/infrastructure"
	"github.com/MyysticOwl/undergrowth-website/internal/lemonsqueezy"
	"github.com/MyysticOwl/undergrowth-website/internal/license"
)

// PurchaseVerifier confirms a license key against the payment provider.
// Implemented by lemonsqueezy.Client; faked in tests.
type PurchaseVerifier interface {
	VerifyPurchase(ctx context.Context, licenseKey, instanceHint string) (*lemonsqueezy.VerificationResult, error)
}

// MailSender delivers an issued license file to the customer.
type MailSender interface {
	SendLicense(ctx context.Context, toEmail, edition, variantName string, licenseFile []byte) error
}

// IssuanceService is the core of the license server: it turns a verified
// purchase into a signed, encrypted license artifact.
type IssuanceService interface {
	// ActivateManual issues a license for a customer-initiated activation
	// request and returns the artifact for direct download.
	ActivateManual(ctx context.Context, req ActivationRequest) (*IssuedLicense, error)

	// ProcessWebhook authenticates and handles a payment-provider webhook
	// delivery, emailing the license on order creation.
	ProcessWebhook(ctx context.Context, rawBody []byte, signatureHex string) (*WebhookOutcome, error)
}

// ActivationRequest carries the fields of a manual activation.
type ActivationRequest struct {
	Email      string
	LicenseKey string
	// MachineID optionally pins the license to one installation. It is
	// recorded in the header's instance_id and passed to the provider as
	// the activation instance name.
	MachineID string
}

// IssuedLicense is a rendered license artifact ready to hand out.
type IssuedLicense struct {
	Edition  license.Edition
	Filename string
	Content  []byte
}

// WebhookOutcome reports what a webhook delivery resulted in. Ignored
// deliveries are still acknowledged with success.
type WebhookOutcome struct {
	Ignored   bool
	EventName string
	Email     string
	Edition   license.Edition
}

// Instance name reported to the provider when the activation request
// does not carry a machine ID.
const defaultInstanceName = "undergrowth-cli"

// Sentinel key accepted in dev mode (no provider API key configured).
const devModeLicenseKey = "test_key"

const (
	sourceManual  = "web_activation"
	sourceWebhook = "lemonsqueezy_webhook"
)

// Default variant labels when the provider response names none.
const (
	fallbackVariantManual  = "Standard License"
	fallbackVariantDevMode = "Community License"
)

type issuanceService struct {
	codec         *license.Codec
	signer        *license.Signer
	verifier      PurchaseVerifier
	mailer        MailSender
	webhookSecret string
	devMode       bool
	logger        *slog.Logger
	metrics       *infrastructure.IssuanceMetrics
	now           func() time.Time
}

// NewIssuanceService wires the orchestrator. signer may be nil when the
// signing key is not configured; issuance then fails with
// ErrServerConfiguration instead of refusing to start, so health and
// metrics endpoints stay reachable on a misconfigured deploy.
func NewIssuanceService(
	codec *license.Codec,
	signer *license.Signer,
	verifier PurchaseVerifier,
	mailer MailSender,
	webhookSecret string,
	devMode bool,
	logger *slog.Logger,
	metrics *infrastructure.IssuanceMetrics,
) IssuanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &issuanceService{
		codec:         codec,
		signer:        signer,
		verifier:      verifier,
		mailer:        mailer,
		webhookSecret: webhookSecret,
		devMode:       devMode,
		logger:        logger.With(slog.String("service", "issuance")),
		metrics:       metrics,
		now:           time.Now,
	}
}

func (s *issuanceService) ActivateManual(ctx context.Context, req ActivationRequest) (*IssuedLicense, error) {
	s.logger.InfoContext(ctx, "manual activation started",
		slog.String("license_key", maskLicenseKey(req.LicenseKey)),
		slog.Bool("dev_mode", s.devMode),
	)

	if req.Email == "" || req.LicenseKey == "" {
		s.metrics.RecordFailure(ctx, "manual", "missing_fields")
		return nil, apperrors.ErrMissingFields
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		s.metrics.RecordFailure(ctx, "manual", "invalid_email")
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidEmailFormat, req.Email)
	}

	edition := license.EditionCommunity
	variantName := fallbackVariantDevMode
	upstreamExpiry := ""
	instanceID := req.MachineID

	if s.devMode {
		// No provider API key: accept only the sentinel dev key. Anything
		// else is an operator problem, not a customer one.
		if req.LicenseKey != devModeLicenseKey {
			s.logger.ErrorContext(ctx, "activation attempted without provider credentials")
			s.metrics.RecordFailure(ctx, "manual", "server_misconfigured")
			return nil, fmt.Errorf("%w: purchase verification unavailable", apperrors.ErrServerConfiguration)
		}
		edition = license.EditionPro
	} else {
		instanceHint := req.MachineID
		if instanceHint == "" {
			instanceHint = defaultInstanceName
		}

		result, err := s.verifier.VerifyPurchase(ctx, req.LicenseKey, instanceHint)
		if err != nil {
			s.metrics.RecordFailure(ctx, "manual", "verification_failed")
			return nil, err
		}

		// The provider knows the purchaser; a mismatched requester does
		// not get a license bound to someone else's key.
		if result.CustomerEmail != "" && !strings.EqualFold(result.CustomerEmail, req.Email) {
			s.metrics.RecordFailure(ctx, "manual", "email_mismatch")
			return nil, apperrors.ErrEmailMismatch
		}

		variantName = fallbackVariantManual
		if result.VariantName != "" {
			variantName = result.VariantName
		}
		edition = license.ClassifyVariant(variantName)
		upstreamExpiry = result.ExpiresAt
		// The provider's activation-instance id is not a machine
		// fingerprint; binding the license to it would lock out every
		// real device. Only a caller-supplied machine_id goes into the
		// header.
		if result.InstanceID != "" {
			s.logger.DebugContext(ctx, "provider activation instance recorded",
				slog.String("provider_instance_id", result.InstanceID))
		}
	}

	issued, err := s.buildArtifact(buildParams{
		email:          req.Email,
		licenseKey:     req.LicenseKey,
		edition:        edition,
		variantName:    variantName,
		instanceID:     instanceID,
		upstreamExpiry: upstreamExpiry,
		source:         sourceManual,
	})
	if err != nil {
		s.metrics.RecordFailure(ctx, "manual", "issuance_failed")
		return nil, err
	}

	s.metrics.RecordIssued(ctx, string(edition), "manual")
	s.logger.InfoContext(ctx, "license issued",
		slog.String("edition", string(edition)),
		slog.String("variant", variantName),
		slog.String("path", "manual"),
	)
	return issued, nil
}

func (s *issuanceService) ProcessWebhook(ctx context.Context, rawBody []byte, signatureHex string) (*WebhookOutcome, error) {
	if s.webhookSecret == "" {
		s.logger.ErrorContext(ctx, "webhook received but no signing secret configured")
		s.metrics.RecordFailure(ctx, "webhook", "server_misconfigured")
		return nil, fmt.Errorf("%w: webhook secret not configured", apperrors.ErrServerConfiguration)
	}
	if !lemonsqueezy.VerifyWebhookSignature(rawBody, signatureHex, s.webhookSecret) {
		s.logger.WarnContext(ctx, "webhook signature rejected")
		s.metrics.RecordFailure(ctx, "webhook", "bad_signature")
		return nil, apperrors.ErrWebhookSignature
	}

	event, err := lemonsqueezy.ParseWebhookEvent(rawBody)
	if err != nil {
		s.metrics.RecordFailure(ctx, "webhook", "malformed_body")
		return nil, err
	}

	if event.Meta.EventName != lemonsqueezy.EventOrderCreated {
		s.logger.InfoContext(ctx, "ignoring webhook event",
			slog.String("event", event.Meta.EventName))
		s.metrics.RecordIgnoredWebhook(ctx, event.Meta.EventName)
		return &WebhookOutcome{Ignored: true, EventName: event.Meta.EventName}, nil
	}

	email := event.Data.Attributes.UserEmail
	if email == "" {
		s.metrics.RecordFailure(ctx, "webhook", "missing_email")
		return nil, fmt.Errorf("%w: order has no email", apperrors.ErrMissingFields)
	}

	licenseKey := event.LicenseKey()
	variantName := event.VariantName()
	edition := license.ClassifyVariant(variantName)

	s.logger.InfoContext(ctx, "processing order",
		slog.String("variant", variantName),
		slog.String("edition", string(edition)),
	)

	issued, err := s.buildArtifact(buildParams{
		email:       email,
		licenseKey:  licenseKey,
		edition:     edition,
		variantName: variantName,
		source:      sourceWebhook,
	})
	if err != nil {
		s.metrics.RecordFailure(ctx, "webhook", "issuance_failed")
		return nil, err
	}

	if err := s.mailer.SendLicense(ctx, email, string(edition), variantName, issued.Content); err != nil {
		s.metrics.RecordFailure(ctx, "webhook", "mail_failed")
		return nil, fmt.Errorf("delivering license email: %w", err)
	}

	s.metrics.RecordIssued(ctx, string(edition), "webhook")
	s.logger.InfoContext(ctx, "license issued and emailed",
		slog.String("edition", string(edition)),
		slog.String("path", "webhook"),
	)
	return &WebhookOutcome{
		EventName: event.Meta.EventName,
		Email:     email,
		Edition:   edition,
	}, nil
}

type buildParams struct {
	email       string
	licenseKey  string
	edition     license.Edition
	variantName string
	instanceID  string
	// upstreamExpiry, when set, is the provider's RFC 3339 expiry and
	// overrides the edition's default validity period.
	upstreamExpiry string
	source         string
}

// Timestamp layout matching toISOString output, so artifacts from this
// server and the original issuer are indistinguishable to tooling.
const issuedAtLayout = "2006-01-02T15:04:05.000Z07:00"

func (s *issuanceService) buildArtifact(p buildParams) (*IssuedLicense, error) {
	if s.signer == nil {
		return nil, fmt.Errorf("%w: signing key not configured", apperrors.ErrServerConfiguration)
	}

	now := s.now().UTC()
	issued := now.Format("2006-01-02")

	expires := ""
	if p.upstreamExpiry != "" {
		expires, _, _ = strings.Cut(p.upstreamExpiry, "T")
	} else {
		expires = now.AddDate(license.ValidityYears(p.edition), 0, 0).Format("2006-01-02")
	}

	header := license.Header{
		Version:       license.SchemaVersion,
		Edition:       p.edition,
		Email:         p.email,
		Issued:        issued,
		Expires:       expires,
		LicenseKey:    p.licenseKey,
		InstanceID:    p.instanceID,
		LastValidated: now.Format(issuedAtLayout),
		VariantName:   p.variantName,
	}

	payload := license.Payload{
		Features:     license.Features(p.edition),
		Entitlements: []string{},
		Metadata:     license.PayloadMetadata{Source: p.source},
	}

	encrypted, err := s.codec.Encrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}

	headerJSON, err := license.MarshalHeader(header)
	if err != nil {
		return nil, fmt.Errorf("serializing header: %w", err)
	}

	signature, err := s.signer.Sign(headerJSON, encrypted)
	if err != nil {
		return nil, fmt.Errorf("signing license: %w", err)
	}

	artifact := license.Artifact{
		Header:    header,
		Payload:   encrypted,
		Signature: signature,
	}
	content, err := artifact.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding license file: %w", err)
	}

	return &IssuedLicense{
		Edition:  p.edition,
		Filename: fmt.Sprintf("license_%s.undergrowth", p.edition),
		Content:  content,
	}, nil
}

// maskLicenseKey keeps logs useful without leaking full keys.
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
