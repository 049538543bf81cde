package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/paymentgateway"
	webhookDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/webhook"
	"github.com/frahmantamala/pharmacy-management/internal/core/events"
	"github.com/frahmantamala/pharmacy-management/pkg/metrics"
)

// Confirmation sources, used as the metrics label and in logs.
const (
	SourceWebhook   = "webhook"
	SourceVerify    = "verify"
	SourceReconcile = "reconcile"
	SourceManual    = "manual"
)

type RepositoryAPI interface {
	Create(ctx context.Context, intent *paymentDatamodel.PaymentIntent) error
	GetByReference(ctx context.Context, reference string) (*paymentDatamodel.PaymentIntent, error)
	// MarkPaid moves an initialized intent to paid and reports whether this
	// call made the transition.
	MarkPaid(ctx context.Context, reference string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, reference string) (bool, error)
	// ClaimFulfillment bumps the attempt counter of a paid, unfulfilled
	// intent if it still equals attempts.
	ClaimFulfillment(ctx context.Context, reference string, attempts int) (bool, error)
	RecordFulfillment(ctx context.Context, reference string, status paymentDatamodel.FulfillmentStatus, failure *string, fulfilledAt *time.Time) error
	ListStaleInitialized(ctx context.Context, createdBefore time.Time, limit int) ([]*paymentDatamodel.PaymentIntent, error)
	ListUnfulfilled(ctx context.Context, paidBefore time.Time, maxAttempts, limit int) ([]*paymentDatamodel.PaymentIntent, error)
}

type WebhookLog interface {
	Record(ctx context.Context, event *webhookDatamodel.Event) error
}

type GatewayAPI interface {
	Initialize(ctx context.Context, req gatewaytypes.InitializeRequest) (*gatewaytypes.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*gatewaytypes.VerifyResult, error)
}

type MetricsRecorder interface {
	IncInitiated(purpose string)
	IncConfirmed(source, outcome string)
	IncWebhook(outcome string)
	IncFulfillment(purpose, outcome string)
}

type Config struct {
	Currency             string
	CallbackURL          string
	DefaultCustomerEmail string
}

type ServiceDeps struct {
	Repo       RepositoryAPI
	Webhooks   WebhookLog
	Resolver   *Resolver
	Gateway    GatewayAPI
	Dispatcher *Dispatcher
	Verifier   *Verifier
	Locker     Locker
	Events     events.Publisher
	Metrics    MetricsRecorder
	Logger     *slog.Logger
	Config     Config
}

type Service struct {
	repo       RepositoryAPI
	webhooks   WebhookLog
	resolver   *Resolver
	gateway    GatewayAPI
	dispatcher *Dispatcher
	verifier   *Verifier
	locker     Locker
	events     events.Publisher
	metrics    MetricsRecorder
	logger     *slog.Logger
	config     Config
	now        func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	locker := deps.Locker
	if locker == nil {
		locker = NoopLocker()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var recorder MetricsRecorder = metrics.NewPaymentMetrics(nil)
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	return &Service{
		repo:       deps.Repo,
		webhooks:   deps.Webhooks,
		resolver:   deps.Resolver,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		verifier:   deps.Verifier,
		locker:     locker,
		events:     deps.Events,
		metrics:    recorder,
		logger:     logger,
		config:     deps.Config,
		now:        time.Now,
	}
}

// Initiate prices the request, opens a gateway checkout and stores the
// initialized intent. Nothing is stored when pricing or the gateway fails.
func (s *Service) Initiate(ctx context.Context, pharmacyID int64, req InitiateRequest) (*InitiateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, pharmacyID, req)
	if err != nil {
		return nil, err
	}
	amount := res.Amount.Round(2)

	payload, err := EncodePayload(res.Payload)
	if err != nil {
		return nil, internal.NewInternalError("failed to encode payment payload", err)
	}

	email := strings.TrimSpace(deref(req.CustomerEmail))
	if email == "" {
		email = s.config.DefaultCustomerEmail
	}

	checkout, err := s.gateway.Initialize(ctx, gatewaytypes.InitializeRequest{
		AmountMinor: ToMinorUnits(amount),
		Currency:    s.config.Currency,
		Email:       email,
		CallbackURL: s.config.CallbackURL,
		Metadata: map[string]string{
			"purpose":     req.Purpose,
			"pharmacy_id": strconv.FormatInt(pharmacyID, 10),
		},
	})
	if err != nil {
		return nil, err
	}

	intent := &paymentDatamodel.PaymentIntent{
		Reference:         checkout.Reference,
		PharmacyID:        pharmacyID,
		Purpose:           paymentDatamodel.Purpose(req.Purpose),
		Amount:            amount,
		Currency:          s.config.Currency,
		Status:            paymentDatamodel.StatusInitialized,
		Payload:           payload,
		CustomerEmail:     &email,
		CustomerPhone:     req.CustomerPhone,
		AuthorizationURL:  checkout.AuthorizationURL,
		FulfillmentStatus: paymentDatamodel.FulfillmentPending,
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		s.logger.Error("gateway checkout opened but intent not stored",
			"reference", checkout.Reference, "purpose", req.Purpose, "error", err)
		return nil, internal.NewInternalError("failed to store payment intent", err)
	}

	s.metrics.IncInitiated(req.Purpose)
	s.logger.Info("payment initiated",
		"reference", intent.Reference,
		"purpose", intent.Purpose,
		"pharmacy_id", pharmacyID,
		"amount", amount.StringFixed(2),
		"currency", intent.Currency)

	return &InitiateResponse{
		AuthorizationURL: checkout.AuthorizationURL,
		Reference:        intent.Reference,
		Amount:           amount.StringFixed(2),
		Currency:         intent.Currency,
	}, nil
}

// Verify is the polling fallback for delayed or missed webhooks.
func (s *Service) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	return s.verify(ctx, reference, SourceVerify)
}

// Reconcile re-verifies an intent on behalf of the background reconciler.
func (s *Service) Reconcile(ctx context.Context, reference string) (*VerifyResponse, error) {
	return s.verify(ctx, reference, SourceReconcile)
}

func (s *Service) verify(ctx context.Context, reference, source string) (*VerifyResponse, error) {
	intent, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("load intent %s: %w", reference, err)
	}
	if intent == nil {
		return nil, internal.ErrIntentNotFound
	}

	var entry *consultation.QueueEntry
	gatewayStatus := ""

	if !intent.IsTerminal() {
		result, err := s.gateway.Verify(ctx, reference)
		if err != nil {
			return nil, err
		}
		gatewayStatus = string(result.Status)

		switch {
		case result.Status == gatewaytypes.TransactionSuccess:
			amount := result.AmountMinor
			conf, err := s.confirm(ctx, reference, source, charge{amountMinor: &amount, currency: result.Currency})
			if err != nil {
				return nil, err
			}
			if conf.intent != nil {
				intent = conf.intent
			}
			if conf.fulfillment != nil {
				entry = conf.fulfillment.QueueEntry
			}
		case result.Status.IsFailure():
			if err := s.fail(ctx, intent, source, gatewayStatus); err != nil {
				return nil, err
			}
		default:
			s.logger.Debug("payment still pending at gateway", "reference", reference, "gateway_status", gatewayStatus)
		}
	}

	if intent.IsPaid() && intent.Purpose == paymentDatamodel.PurposeConsultation && entry == nil {
		entry, err = s.dispatcher.QueueEntry(ctx, intent)
		if err != nil {
			s.logger.Warn("queue entry unavailable for paid consultation", "reference", reference, "error", err)
		}
	}

	resp := &VerifyResponse{
		Success: true,
		Paid:    intent.IsPaid(),
		Transaction: TransactionView{
			Status:    transactionStatus(intent, gatewayStatus),
			Amount:    intent.Amount.StringFixed(2),
			Currency:  intent.Currency,
			Reference: intent.Reference,
		},
	}
	if entry != nil {
		view := entry.ToResponse()
		resp.QueueEntry = &view
	}
	return resp, nil
}

// HandleWebhook authenticates and applies one gateway delivery. Business
// no-ops return an acknowledgement; only a bad signature, an unreadable
// body or an infrastructure failure return an error.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResponse, error) {
	if err := s.verifier.Verify(body, signature); err != nil {
		s.metrics.IncWebhook("bad_signature")
		s.logger.Warn("webhook signature rejected",
			"security_event", true,
			"body_bytes", len(body),
			"signature_present", signature != "")
		return nil, err
	}

	// authenticated deliveries are always acknowledged with 200
	evt, err := ParseEvent(body)
	if err != nil {
		s.metrics.IncWebhook(webhookDatamodel.OutcomeRejected)
		s.audit(ctx, "", "", webhookDatamodel.OutcomeRejected, err.Error(), body)
		s.logger.Warn("signed webhook rejected", "error", err)
		return &WebhookResponse{OK: false}, nil
	}

	if evt.Event != EventChargeSuccess {
		s.metrics.IncWebhook(webhookDatamodel.OutcomeIgnored)
		s.audit(ctx, evt.Event, evt.Data.Reference, webhookDatamodel.OutcomeIgnored, "", body)
		s.logger.Info("webhook event ignored", "event", evt.Event, "reference", evt.Data.Reference)
		return &WebhookResponse{OK: true}, nil
	}

	conf, err := s.confirm(ctx, evt.Data.Reference, SourceWebhook, charge{amountMinor: evt.Data.Amount, currency: evt.Data.Currency})
	if err != nil {
		s.metrics.IncWebhook(webhookDatamodel.OutcomeError)
		s.audit(ctx, evt.Event, evt.Data.Reference, webhookDatamodel.OutcomeError, err.Error(), body)
		return nil, err
	}

	s.metrics.IncWebhook(conf.outcome)
	s.audit(ctx, evt.Event, evt.Data.Reference, conf.outcome, conf.note, body)
	return &WebhookResponse{OK: conf.outcome != webhookDatamodel.OutcomeRejected}, nil
}

// RetryFulfillment reruns fulfillment of a paid intent whose business effect
// did not complete. pharmacyID scopes the lookup when non-zero.
func (s *Service) RetryFulfillment(ctx context.Context, pharmacyID int64, reference, source string) (*FulfillmentView, error) {
	release := s.lock(ctx, reference)
	defer release()

	intent, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("load intent %s: %w", reference, err)
	}
	if intent == nil || (pharmacyID != 0 && intent.PharmacyID != pharmacyID) {
		return nil, internal.ErrIntentNotFound
	}
	if !intent.IsPaid() {
		return nil, internal.ErrNotPaid
	}
	if intent.FulfillmentStatus == paymentDatamodel.FulfillmentFulfilled {
		view := ToFulfillmentView(intent)
		return &view, nil
	}

	s.logger.Info("retrying fulfillment",
		"reference", reference,
		"source", source,
		"attempts", intent.FulfillmentAttempts)
	_, _ = s.fulfill(ctx, intent)

	latest, err := s.repo.GetByReference(ctx, reference)
	if err != nil || latest == nil {
		latest = intent
	}
	view := ToFulfillmentView(latest)
	return &view, nil
}

// StaleIntents lists initialized intents older than age, oldest first.
func (s *Service) StaleIntents(ctx context.Context, age time.Duration, limit int) ([]*paymentDatamodel.PaymentIntent, error) {
	return s.repo.ListStaleInitialized(ctx, s.now().Add(-age), limit)
}

// UnfulfilledIntents lists paid intents whose fulfillment failed, or stayed
// pending longer than grace, with attempts left.
func (s *Service) UnfulfilledIntents(ctx context.Context, grace time.Duration, maxAttempts, limit int) ([]*paymentDatamodel.PaymentIntent, error) {
	return s.repo.ListUnfulfilled(ctx, s.now().Add(-grace), maxAttempts, limit)
}

type charge struct {
	amountMinor *int64
	currency    string
}

type confirmation struct {
	outcome     string
	note        string
	intent      *paymentDatamodel.PaymentIntent
	fulfillment *Fulfillment
}

// confirm applies a gateway-confirmed success. The status compare-and-swap
// picks exactly one winner per reference; only the winner fulfills.
func (s *Service) confirm(ctx context.Context, reference, source string, ch charge) (*confirmation, error) {
	release := s.lock(ctx, reference)
	defer release()

	intent, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("load intent %s: %w", reference, err)
	}
	if intent == nil {
		s.metrics.IncConfirmed(source, webhookDatamodel.OutcomeUnknown)
		s.logger.Info("confirmation for unknown reference acknowledged", "reference", reference, "source", source)
		return &confirmation{outcome: webhookDatamodel.OutcomeUnknown}, nil
	}

	switch intent.Status {
	case paymentDatamodel.StatusPaid:
		s.metrics.IncConfirmed(source, webhookDatamodel.OutcomeDuplicate)
		s.logger.Info("intent already paid", "reference", reference, "source", source)
		return &confirmation{outcome: webhookDatamodel.OutcomeDuplicate, intent: intent}, nil
	case paymentDatamodel.StatusFailed:
		s.metrics.IncConfirmed(source, webhookDatamodel.OutcomeRejected)
		s.logger.Error("charge succeeded for a failed intent, needs operator review", "reference", reference, "source", source)
		return &confirmation{outcome: webhookDatamodel.OutcomeRejected, note: "intent already failed", intent: intent}, nil
	}

	if reason := chargeMismatch(intent, ch); reason != "" {
		s.metrics.IncConfirmed(source, webhookDatamodel.OutcomeRejected)
		s.logger.Warn("confirmed charge does not match intent",
			"security_event", true,
			"reference", reference,
			"source", source,
			"reason", reason)
		return &confirmation{outcome: webhookDatamodel.OutcomeRejected, note: reason, intent: intent}, nil
	}

	// the money is captured; finish even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	paidAt := s.now()
	moved, err := s.repo.MarkPaid(ctx, reference, paidAt)
	if err != nil {
		return nil, fmt.Errorf("mark intent %s paid: %w", reference, err)
	}
	if !moved {
		s.metrics.IncConfirmed(source, webhookDatamodel.OutcomeDuplicate)
		s.logger.Info("concurrent confirmation won the transition", "reference", reference, "source", source)
		latest, err := s.repo.GetByReference(ctx, reference)
		if err != nil || latest == nil {
			latest = intent
		}
		return &confirmation{outcome: webhookDatamodel.OutcomeDuplicate, intent: latest}, nil
	}

	intent.Status = paymentDatamodel.StatusPaid
	intent.PaidAt = &paidAt
	s.metrics.IncConfirmed(source, string(paymentDatamodel.StatusPaid))
	s.logger.Info("payment confirmed",
		"reference", reference,
		"purpose", intent.Purpose,
		"source", source,
		"amount", intent.Amount.StringFixed(2))
	s.publish(ctx, events.NewPaymentPaidEvent(reference, string(intent.Purpose), intent.Amount, intent.Currency, source))

	conf := &confirmation{outcome: webhookDatamodel.OutcomeProcessed, intent: intent}
	result, err := s.fulfill(ctx, intent)
	if err != nil {
		conf.note = "fulfillment failed: " + err.Error()
	}
	conf.fulfillment = result
	return conf, nil
}

// fulfill dispatches a paid intent and records the outcome on it. A failure
// never reverts the payment.
func (s *Service) fulfill(ctx context.Context, intent *paymentDatamodel.PaymentIntent) (*Fulfillment, error) {
	claimed, err := s.repo.ClaimFulfillment(ctx, intent.Reference, intent.FulfillmentAttempts)
	if err != nil {
		s.logger.Error("failed to claim fulfillment", "reference", intent.Reference, "error", err)
		return nil, err
	}
	if !claimed {
		s.logger.Info("fulfillment claimed elsewhere", "reference", intent.Reference)
		return nil, nil
	}
	intent.FulfillmentAttempts++

	result, ferr := s.dispatcher.Fulfill(ctx, intent)
	if ferr != nil {
		msg := ferr.Error()
		intent.FulfillmentStatus = paymentDatamodel.FulfillmentFailed
		intent.FulfillmentError = &msg
		if err := s.repo.RecordFulfillment(ctx, intent.Reference, paymentDatamodel.FulfillmentFailed, &msg, nil); err != nil {
			s.logger.Error("failed to record fulfillment failure", "reference", intent.Reference, "error", err)
		}
		s.metrics.IncFulfillment(string(intent.Purpose), string(paymentDatamodel.FulfillmentFailed))
		s.logger.Error("fulfillment failed, payment stays paid",
			"reference", intent.Reference,
			"purpose", intent.Purpose,
			"attempts", intent.FulfillmentAttempts,
			"error", ferr)
		s.publish(ctx, events.NewFulfillmentFailedEvent(intent.Reference, string(intent.Purpose), msg, intent.FulfillmentAttempts))
		return nil, ferr
	}

	now := s.now()
	intent.FulfillmentStatus = paymentDatamodel.FulfillmentFulfilled
	intent.FulfillmentError = nil
	intent.FulfilledAt = &now
	if err := s.repo.RecordFulfillment(ctx, intent.Reference, paymentDatamodel.FulfillmentFulfilled, nil, &now); err != nil {
		s.logger.Error("failed to record fulfillment", "reference", intent.Reference, "error", err)
	}
	s.metrics.IncFulfillment(string(intent.Purpose), string(paymentDatamodel.FulfillmentFulfilled))
	s.logger.Info("payment fulfilled", "reference", intent.Reference, "purpose", intent.Purpose)
	return result, nil
}

func (s *Service) fail(ctx context.Context, intent *paymentDatamodel.PaymentIntent, source, gatewayStatus string) error {
	moved, err := s.repo.MarkFailed(ctx, intent.Reference)
	if err != nil {
		return fmt.Errorf("mark intent %s failed: %w", intent.Reference, err)
	}
	if !moved {
		latest, err := s.repo.GetByReference(ctx, intent.Reference)
		if err == nil && latest != nil {
			*intent = *latest
		}
		return nil
	}
	intent.Status = paymentDatamodel.StatusFailed
	s.metrics.IncConfirmed(source, string(paymentDatamodel.StatusFailed))
	s.logger.Info("payment failed at gateway", "reference", intent.Reference, "gateway_status", gatewayStatus)
	s.publish(ctx, events.NewPaymentFailedEvent(intent.Reference, gatewayStatus))
	return nil
}

func (s *Service) lock(ctx context.Context, reference string) func() {
	release, err := s.locker.Acquire(ctx, "payment:"+reference)
	if err != nil {
		s.logger.Warn("confirmation lock unavailable, relying on status guard", "reference", reference, "error", err)
		return func() {}
	}
	return release
}

func (s *Service) audit(ctx context.Context, eventType, reference, outcome, note string, body []byte) {
	if s.webhooks == nil {
		return
	}
	record := &webhookDatamodel.Event{
		EventType:  eventType,
		Reference:  reference,
		Outcome:    outcome,
		Payload:    body,
		ReceivedAt: s.now(),
	}
	if record.EventType == "" {
		record.EventType = "unknown"
	}
	if note != "" {
		record.ProcessingError = &note
	}
	if err := s.webhooks.Record(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error("failed to record webhook event", "reference", reference, "outcome", outcome, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func chargeMismatch(intent *paymentDatamodel.PaymentIntent, ch charge) string {
	if ch.amountMinor != nil && *ch.amountMinor != ToMinorUnits(intent.Amount) {
		return fmt.Sprintf("amount %d does not match expected %d", *ch.amountMinor, ToMinorUnits(intent.Amount))
	}
	if ch.currency != "" && !strings.EqualFold(ch.currency, intent.Currency) {
		return fmt.Sprintf("currency %s does not match expected %s", ch.currency, intent.Currency)
	}
	return ""
}

func transactionStatus(intent *paymentDatamodel.PaymentIntent, gatewayStatus string) string {
	switch intent.Status {
	case paymentDatamodel.StatusPaid:
		return string(gatewaytypes.TransactionSuccess)
	case paymentDatamodel.StatusFailed:
		if gatewayStatus != "" {
			return gatewayStatus
		}
		return string(gatewaytypes.TransactionFailed)
	}
	if gatewayStatus != "" {
		return gatewayStatus
	}
	return string(gatewaytypes.TransactionPending)
}
