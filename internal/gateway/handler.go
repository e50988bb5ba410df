// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/launchgate/launchgate/internal/auth"
	"github.com/launchgate/launchgate/internal/identity"
	"github.com/launchgate/launchgate/internal/limiter"
	"github.com/launchgate/launchgate/internal/profile"
	"github.com/launchgate/launchgate/internal/wire"
	"github.com/launchgate/launchgate/pkg/errutil"
)

// Generic client-facing messages for internal failures. Operator
// messages pass through verbatim; everything else maps to one of these
// so backend detail never reaches the client.
const (
	msgDecryptionError  = "Password decryption error"
	msgProviderError    = "Internal auth provider error"
	msgAuthHandlerError = "Internal auth handler error"
	msgInternalError    = "Internal error"
	illegalResultFormat = "Illegal result: '%s'"
)

// Decryptor recovers the plaintext password from the request blob.
// Satisfied by keys.Pair.
type Decryptor interface {
	DecryptPassword(encrypted []byte) (string, error)
}

// MetricsRecorder receives login outcome events. Satisfied by the
// observability metrics; nil-safe via noopMetrics.
type MetricsRecorder interface {
	Login(outcome string)
	Rejection(stage string)
}

type noopMetrics struct{}

func (noopMetrics) Login(string)     {}
func (noopMetrics) Rejection(string) {}

// Handler runs one authentication exchange per connection.
type Handler struct {
	decryptor    Decryptor
	ips          *limiter.IPLimiter
	provider     auth.Provider
	cache        *identity.Cache
	fingerprints *limiter.Fingerprints
	violations   *limiter.ViolationLog
	profiles     *profile.Store
	metrics      MetricsRecorder
	logger       *slog.Logger
}

// HandlerConfig carries the handler's collaborators.
type HandlerConfig struct {
	Decryptor    Decryptor
	IPs          *limiter.IPLimiter
	Provider     auth.Provider
	Cache        *identity.Cache
	Fingerprints *limiter.Fingerprints
	Violations   *limiter.ViolationLog
	Profiles     *profile.Store
	Metrics      MetricsRecorder
	Logger       *slog.Logger
}

// NewHandler creates a Handler. Metrics and Logger may be nil.
func NewHandler(cfg HandlerConfig) *Handler {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		decryptor:    cfg.Decryptor,
		ips:          cfg.IPs,
		provider:     cfg.Provider,
		cache:        cfg.Cache,
		fingerprints: cfg.Fingerprints,
		violations:   cfg.Violations,
		profiles:     cfg.Profiles,
		metrics:      metrics,
		logger:       logger,
	}
}

// Handle reads one authentication request from r and writes the
// response to w. A returned error means the exchange could not complete
// at the transport level; rejections are written to the client and
// return nil.
func (h *Handler) Handle(ctx context.Context, r io.Reader, w io.Writer, ip string) error {
	in := wire.NewReader(r)
	out := wire.NewWriter(w)

	login, err := in.ReadString(wire.MaxLoginLength)
	if err != nil {
		return err
	}
	encryptedPassword, err := in.ReadBytes(wire.MaxPasswordBlob)
	if err != nil {
		return err
	}
	fingerprint, err := in.ReadBytes(wire.MaxFingerprintBlob)
	if err != nil {
		return err
	}
	violationFlag, err := in.ReadBool()
	if err != nil {
		return err
	}

	password, err := h.decryptor.DecryptPassword(encryptedPassword)
	if err != nil {
		h.metrics.Rejection("decrypt")
		return h.reject(out, msgDecryptionError)
	}

	if decision := h.ips.Check(ip); !decision.Allowed {
		h.metrics.Rejection("ip")
		return h.reject(out, decision.Message)
	}

	result, err := h.provider.Authenticate(ctx, login, password, ip)
	if err != nil {
		if rejection, ok := auth.AsRejection(err); ok {
			h.metrics.Rejection("credentials")
			return h.reject(out, rejection.Message)
		}
		errutil.LogError(h.logger, "credential verification failed", err)
		h.metrics.Login("error")
		return h.reject(out, msgProviderError)
	}

	if !auth.IsValidUsername(result.Username) {
		h.logger.Warn("verifier returned invalid username",
			"login", login,
			"username", result.Username)
		h.metrics.Rejection("username")
		return h.reject(out, fmt.Sprintf(illegalResultFormat, result.Username))
	}

	accountUUID, err := h.cache.CommitAuth(ctx, result)
	if err != nil {
		errutil.LogError(h.logger, "identity commit failed", err)
		h.metrics.Login("error")
		return h.reject(out, msgAuthHandlerError)
	}

	banned, err := h.fingerprints.CheckAccount(ctx, result.Username, fingerprint)
	if err != nil {
		errutil.LogError(h.logger, "fingerprint check failed", err)
		h.metrics.Login("error")
		return h.reject(out, msgInternalError)
	}
	if banned {
		h.metrics.Rejection("fingerprint")
		return h.reject(out, h.ips.BannedMessage())
	}

	if violationFlag {
		h.violations.Record(result.Username)
		h.metrics.Rejection("violation")
		return h.reject(out, h.ips.BannedMessage())
	}

	h.logger.Info("login succeeded",
		"login", login,
		"username", result.Username,
		"uuid", accountUUID.String())
	h.metrics.Login("ok")

	if err := out.WriteByte(wire.MarkerOK); err != nil {
		return err
	}
	if err := out.WriteString(accountUUID.String()); err != nil {
		return err
	}
	if err := out.WriteString(result.Username); err != nil {
		return err
	}
	if err := out.WriteString(result.AccessToken); err != nil {
		return err
	}

	// Profile visibility is keyed on the raw login, not the canonical
	// username the verifier returned.
	authorized := h.profiles.ListFor(login)
	if err := out.WriteUint32(uint32(len(authorized))); err != nil {
		return err
	}
	for _, signed := range authorized {
		if err := out.WriteBytes(signed.Payload); err != nil {
			return err
		}
		if err := out.WriteBytes(signed.Signature); err != nil {
			return err
		}
	}
	return out.Flush()
}

// reject writes the error marker and the user-facing reason, then
// flushes. Nothing else is written after a rejection.
func (h *Handler) reject(out *wire.Writer, reason string) error {
	if err := out.WriteByte(wire.MarkerError); err != nil {
		return err
	}
	if err := out.WriteString(reason); err != nil {
		return err
	}
	return out.Flush()
}
