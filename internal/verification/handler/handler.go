package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"attestor/internal/artifacts"
	"attestor/internal/credential"
	"attestor/internal/verification"
	"attestor/pkg/platform/httputil"
	"attestor/pkg/requestcontext"
)

// Service defines the verification operations the handler needs.
type Service interface {
	Extract(ctx context.Context, req verification.ExtractRequest) (verification.Extraction, error)
	Verify(ctx context.Context, req verification.VerifyRequest) (verification.Result, error)
	Issue(ctx context.Context, req verification.VerifyRequest) (verification.Issuance, error)
	VerifyCredential(ctx context.Context, c credential.Credential) verification.CredentialCheck
	VerifyPayload(ctx context.Context, payload string) (verification.CredentialCheck, error)
	Artifact(ctx context.Context, id string) (artifacts.Artifact, error)
	QRCode(ctx context.Context, id string, size int) ([]byte, error)
	Envelope(c credential.Credential) (string, error)
	JWKS() (jwk.Set, error)
	Threshold() float64
}

// Handler wires verification endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", h.HandleExtract)
		r.Post("/verify", h.HandleVerify)
		r.Post("/credentials", h.HandleIssue)
		r.Post("/credentials/verify", h.HandleCheck)
		r.Get("/credentials/{id}", h.HandleDownload)
		r.Get("/credentials/{id}/qr", h.HandleQR)
	})
	r.Get("/.well-known/jwks.json", h.HandleJWKS)
}

// HandleExtract handles POST /api/v1/extract.
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ExtractRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	out, err := h.service.Extract(ctx, req.Parsed())
	if err != nil {
		h.logger.ErrorContext(ctx, "extraction failed",
			"request_id", requestID,
			"pages", len(req.Pages),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "document extracted",
		"request_id", requestID,
		"pages", len(out.Pages),
		"fields", out.Fields.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromExtraction(out))
}

// HandleVerify handles POST /api/v1/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Verify(ctx, req.Parsed())
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification completed",
		"request_id", requestID,
		"accepted", res.Outcome.Accepted,
		"score", res.Outcome.Rounded(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(res, h.service.Threshold()))
}

// HandleIssue handles POST /api/v1/credentials.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	iss, err := h.service.Issue(ctx, req.Parsed())
	if err != nil {
		h.logger.WarnContext(ctx, "credential not issued",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.service.Envelope(iss.Credential)
	if err != nil {
		h.logger.WarnContext(ctx, "credential envelope failed",
			"request_id", requestID,
			"credential_id", iss.Credential.ID,
			"error", err,
		)
	}

	h.logger.InfoContext(ctx, "credential issued",
		"request_id", requestID,
		"credential_id", iss.Credential.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromIssuance(iss, h.service.Threshold(), token))
}

// HandleCheck handles POST /api/v1/credentials/verify. Signature outcomes
// are always 200 with a status; only undecodable input is a 400.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CredentialCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var check verification.CredentialCheck
	if c := req.ParsedCredential(); c != nil {
		check = h.service.VerifyCredential(ctx, *c)
	} else {
		var err error
		check, err = h.service.VerifyPayload(ctx, req.Payload)
		if err != nil {
			h.logger.InfoContext(ctx, "malformed credential payload",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
	}

	h.logger.InfoContext(ctx, "credential checked",
		"request_id", requestID,
		"credential_id", check.Credential.ID,
		"status", string(check.Verification.Status),
		"expired", check.Expired,
	)
	httputil.WriteJSON(w, http.StatusOK, FromCheck(check))
}

// HandleDownload handles GET /api/v1/credentials/{id}.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	a, err := h.service.Artifact(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="credential-`+a.ID+`.json"`)
	httputil.WriteJSON(w, http.StatusOK, a.Credential)
}

// HandleQR handles GET /api/v1/credentials/{id}/qr.
func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	size, err := parseSize(r.URL.Query().Get("size"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	png, err := h.service.QRCode(ctx, id, size)
	if err != nil {
		h.logger.WarnContext(ctx, "qr rendering failed",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleJWKS handles GET /.well-known/jwks.json.
func (h *Handler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.JWKS()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	httputil.WriteJSON(w, http.StatusOK, set)
}
