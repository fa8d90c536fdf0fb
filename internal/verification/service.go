package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"attestor/internal/artifacts"
	"attestor/internal/audit"
	"attestor/internal/compact"
	"attestor/internal/comparison"
	"attestor/internal/confidence"
	"attestor/internal/credential"
	"attestor/internal/document"
	"attestor/internal/extraction"
	"attestor/internal/ocr"
	"attestor/internal/quality"
	"attestor/internal/verification/metrics"
	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/platform/sentinel"
	"attestor/pkg/requestcontext"
)

// Assistant supplies additional fields for a page's text. It must not fail;
// an empty set is a valid answer.
type Assistant interface {
	Extract(ctx context.Context, text string) document.FieldSet
}

// Auditor records pipeline outcomes.
type Auditor interface {
	Emit(ctx context.Context, e audit.Event)
}

// Service runs the document verification pipeline. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	issuer     *credential.Issuer
	extractor  *extraction.Extractor
	assistant  Assistant
	recognizer ocr.Recognizer
	scorer     *quality.Scorer
	comparator *comparison.Comparator
	aggregator *confidence.Aggregator
	verifier   *credential.Verifier
	store      artifacts.Store
	auditor    Auditor
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithExtractor(e *extraction.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

func WithAssistant(a Assistant) Option {
	return func(s *Service) { s.assistant = a }
}

func WithRecognizer(r ocr.Recognizer) Option {
	return func(s *Service) { s.recognizer = r }
}

func WithScorer(sc *quality.Scorer) Option {
	return func(s *Service) { s.scorer = sc }
}

func WithComparator(c *comparison.Comparator) Option {
	return func(s *Service) { s.comparator = c }
}

func WithAggregator(a *confidence.Aggregator) Option {
	return func(s *Service) { s.aggregator = a }
}

// WithVerifier overrides the default verifier, which trusts only this
// service's issuer key.
func WithVerifier(v *credential.Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithStore(st artifacts.Store) Option {
	return func(s *Service) { s.store = st }
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the pipeline around issuer. Unset stages use their
// documented defaults.
func NewService(issuer *credential.Issuer, opts ...Option) (*Service, error) {
	if issuer == nil {
		return nil, errors.New("issuer is required")
	}
	s := &Service{
		issuer:     issuer,
		extractor:  extraction.New(extraction.WithDocumentPass()),
		scorer:     quality.NewScorer(quality.DefaultThresholds()),
		comparator: comparison.New(),
		aggregator: confidence.NewAggregator(confidence.DefaultAcceptanceThreshold),
		verifier: credential.NewVerifier(credential.StaticResolver{
			issuer.VerificationMethod(): issuer.PublicKey(),
		}),
		logger: slog.Default(),
		tracer: otel.Tracer("attestor/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditor == nil {
		s.auditor = audit.NewEmitter(audit.NopPublisher{}, s.logger)
	}
	return s, nil
}

// Extract recognizes and extracts every page in parallel. The primary page
// (index 0) supplies the fields used for comparison; only its failure is an
// error. Other pages that fail are returned with Err set.
func (s *Service) Extract(ctx context.Context, req ExtractRequest) (Extraction, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Extract",
		trace.WithAttributes(attribute.Int("pages", len(req.Pages))))
	defer span.End()

	out, err := s.extract(ctx, req)
	if err != nil {
		fail(span, err)
		return Extraction{}, err
	}
	span.SetAttributes(attribute.Int("fields", out.Fields.Len()))
	return out, nil
}

func (s *Service) extract(ctx context.Context, req ExtractRequest) (Extraction, error) {
	if err := validatePages(req.Pages); err != nil {
		return Extraction{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = ocr.ModePrinted
	}

	results := make([]PageResult, len(req.Pages))
	g, gctx := errgroup.WithContext(ctx)
	for i, page := range req.Pages {
		g.Go(func() error {
			r, err := s.processPage(gctx, page, mode)
			if err != nil {
				if page.Index == 0 {
					return err
				}
				s.logger.WarnContext(ctx, "secondary page skipped",
					"request_id", requestcontext.RequestID(ctx),
					"page", page.Index,
					"error", err,
				)
				r = PageResult{Page: document.Page{Index: page.Index}, Fields: document.NewFieldSet(), Err: err}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Extraction{}, err
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Page.Index < results[b].Page.Index })
	primary := results[0]
	return Extraction{Pages: results, Fields: primary.Fields, Quality: primary.Quality}, nil
}

func validatePages(pages []PageInput) error {
	if len(pages) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one page is required")
	}
	seen := make(map[int]bool, len(pages))
	for _, p := range pages {
		if p.Index < 0 {
			return dErrors.Newf(dErrors.CodeInvalidInput, "page index %d is negative", p.Index)
		}
		if seen[p.Index] {
			return dErrors.Newf(dErrors.CodeInvalidInput, "page index %d appears twice", p.Index)
		}
		seen[p.Index] = true
		if strings.TrimSpace(p.Text) == "" && len(p.Image) == 0 {
			return dErrors.Newf(dErrors.CodeInvalidInput, "page %d has neither text nor image", p.Index)
		}
	}
	if !seen[0] {
		return dErrors.New(dErrors.CodeInvalidInput, "page 0 is required")
	}
	return nil
}

func (s *Service) processPage(ctx context.Context, in PageInput, mode ocr.Mode) (PageResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.page",
		trace.WithAttributes(attribute.Int("page", in.Index)))
	defer span.End()

	var report *quality.Report
	if len(in.Image) > 0 {
		start := time.Now()
		img, _, err := quality.DecodeBytes(in.Image)
		switch {
		case err == nil:
			r := s.scorer.Score(img)
			r.Page = in.Index
			report = &r
			s.metrics.ObserveStage("quality", time.Since(start))
		case strings.TrimSpace(in.Text) == "":
			fail(span, err)
			return PageResult{}, err
		default:
			s.logger.WarnContext(ctx, "page image not scored",
				"request_id", requestcontext.RequestID(ctx),
				"page", in.Index,
				"error", err,
			)
		}
	}

	text := in.Text
	if strings.TrimSpace(text) == "" {
		recognized, err := s.recognize(ctx, in, mode)
		if err != nil {
			fail(span, err)
			return PageResult{}, err
		}
		text = recognized
	}

	start := time.Now()
	fields := s.extractor.Extract(text)
	if s.assistant != nil && in.Index == 0 {
		fields = fields.Merge(s.assistant.Extract(ctx, text))
	}
	s.metrics.ObserveStage("extract", time.Since(start))

	return PageResult{
		Page:    document.Page{Index: in.Index, Text: text},
		Fields:  fields,
		Quality: report,
	}, nil
}

func (s *Service) recognize(ctx context.Context, in PageInput, mode ocr.Mode) (string, error) {
	if s.recognizer == nil {
		return "", dErrors.New(dErrors.CodeUnavailable, "text recognition is not configured")
	}
	start := time.Now()
	text, err := s.recognizer.Recognize(ctx, in.Image, mode)
	s.metrics.ObserveStage("recognize", time.Since(start))
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("recognize page %d", in.Index))
	}
	return text, nil
}

// Verify extracts the document and compares it with the submitted values.
// Every field in either set gets a result; individual field failures are
// non-matches, never errors.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Verify")
	defer span.End()

	res, err := s.verify(ctx, req)
	if err != nil {
		fail(span, err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Float64("score", res.Outcome.OverallScore),
		attribute.Bool("accepted", res.Outcome.Accepted),
	)

	s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionDocumentVerified,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Score:     res.Outcome.Rounded(),
		Accepted:  res.Outcome.Accepted,
	})
	return res, nil
}

func (s *Service) verify(ctx context.Context, req VerifyRequest) (Result, error) {
	extracted, err := s.Extract(ctx, req.ExtractRequest)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	results := s.comparator.Compare(extracted.Fields, req.Submitted)
	outcome := s.aggregator.Aggregate(results)
	s.metrics.ObserveStage("compare", time.Since(start))

	for _, r := range results {
		s.metrics.IncrementField(r.Field.String(), r.Matched)
	}
	s.metrics.IncrementOutcome(outcome.Accepted, outcome.OverallScore)

	s.logger.InfoContext(ctx, "document verified",
		"request_id", requestcontext.RequestID(ctx),
		"fields_checked", outcome.FieldsChecked,
		"fields_matched", outcome.FieldsMatched,
		"score", outcome.Rounded(),
		"accepted", outcome.Accepted,
	)
	return Result{Extraction: extracted, Outcome: outcome}, nil
}

// Issue verifies the document and, when accepted, signs a credential over
// the submitted values of the matched fields.
func (s *Service) Issue(ctx context.Context, req VerifyRequest) (Issuance, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Issue")
	defer span.End()

	out, err := s.issue(ctx, req)
	if err != nil {
		fail(span, err)
		return Issuance{}, err
	}
	span.SetAttributes(attribute.String("credential_id", out.Credential.ID))
	return out, nil
}

func (s *Service) issue(ctx context.Context, req VerifyRequest) (Issuance, error) {
	res, err := s.verify(ctx, req)
	if err != nil {
		return Issuance{}, err
	}
	if !res.Outcome.Accepted {
		return Issuance{}, dErrors.Newf(dErrors.CodeUnprocessable,
			"verification not accepted: score %.3f is below %.2f",
			res.Outcome.Rounded(), s.aggregator.Threshold())
	}

	start := time.Now()
	cred, err := s.issuer.Issue(res.Outcome.Agreed())
	if err != nil {
		return Issuance{}, err
	}
	payload, err := compact.Encode(cred)
	if err != nil {
		return Issuance{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode credential")
	}
	s.metrics.ObserveStage("issue", time.Since(start))
	s.metrics.IncrementIssued(len(payload))

	out := Issuance{Result: res, Credential: cred, Payload: payload}
	out.ArtifactID = s.saveArtifact(ctx, cred, payload)

	s.auditor.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialIssued,
		Timestamp:    requestcontext.Now(ctx),
		RequestID:    requestcontext.RequestID(ctx),
		SubjectHash:  audit.HashSubject(cred.CredentialSubject.ID),
		CredentialID: cred.ID,
		Score:        res.Outcome.Rounded(),
		Accepted:     true,
	})
	s.logger.InfoContext(ctx, "credential issued",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", cred.ID,
		"claims", len(cred.CredentialSubject.Claims),
		"payload_bytes", len(payload),
	)
	return out, nil
}

// saveArtifact keeps the credential downloadable. A cache failure does not
// undo issuance; the artifact id is left empty instead.
func (s *Service) saveArtifact(ctx context.Context, cred credential.Credential, payload string) string {
	if s.store == nil {
		return ""
	}
	id := strings.TrimPrefix(cred.ID, "urn:uuid:")
	err := s.store.Save(ctx, artifacts.Artifact{
		ID:         id,
		Credential: cred,
		Payload:    payload,
		CreatedAt:  requestcontext.Now(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "artifact not stored",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", cred.ID,
			"error", err,
		)
		return ""
	}
	return id
}

// Envelope returns the VC-JWT form of a credential signed by this service.
func (s *Service) Envelope(c credential.Credential) (string, error) {
	token, err := s.issuer.Envelope(c)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign credential envelope")
	}
	return token, nil
}

// VerifyCredential checks a presented credential. Signature problems are
// reported in the status, never as errors.
func (s *Service) VerifyCredential(ctx context.Context, c credential.Credential) CredentialCheck {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyCredential")
	defer span.End()

	v := s.verifier.Verify(ctx, c)
	check := CredentialCheck{
		Credential:   c,
		Verification: v,
		Expired:      v.Status != credential.StatusMalformed && c.Expired(requestcontext.Now(ctx)),
	}
	span.SetAttributes(attribute.String("status", string(v.Status)))
	s.metrics.IncrementCheck(string(v.Status))

	s.auditor.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialChecked,
		Timestamp:    requestcontext.Now(ctx),
		RequestID:    requestcontext.RequestID(ctx),
		CredentialID: c.ID,
		Accepted:     v.Valid() && !check.Expired,
		Status:       string(v.Status),
	})
	return check
}

// VerifyPayload decodes a compact payload and checks it. Undecodable input
// is an error carrying dErrors.CodeMalformedPayload.
func (s *Service) VerifyPayload(ctx context.Context, payload string) (CredentialCheck, error) {
	c, err := compact.Decode(payload)
	if err != nil {
		s.metrics.IncrementCheck(string(credential.StatusMalformed))
		return CredentialCheck{}, err
	}
	return s.VerifyCredential(ctx, c), nil
}

// Artifact returns a previously issued credential by id.
func (s *Service) Artifact(ctx context.Context, id string) (artifacts.Artifact, error) {
	if s.store == nil {
		return artifacts.Artifact{}, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	a, err := s.store.Find(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return artifacts.Artifact{}, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	if err != nil {
		return artifacts.Artifact{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "load credential")
	}
	return a, nil
}

// QRCode renders the compact payload of a stored credential as PNG.
func (s *Service) QRCode(ctx context.Context, id string, size int) ([]byte, error) {
	a, err := s.Artifact(ctx, id)
	if err != nil {
		return nil, err
	}
	return compact.RenderQR(a.Payload, size)
}

// JWKS publishes the issuer's public key.
func (s *Service) JWKS() (jwk.Set, error) {
	set, err := credential.PublicJWKS(s.issuer.PublicKey())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build jwks")
	}
	return set, nil
}

// Threshold is the acceptance threshold in use.
func (s *Service) Threshold() float64 {
	return s.aggregator.Threshold()
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
