package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AccessRelay/app/models"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/access"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/entitlements"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/metrics"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/notify"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/payments"
)

// Outcome classifies how a delivery was handled.
type Outcome string

const (
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomePending      Outcome = "pending"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeRejected     Outcome = "rejected"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeFailed       Outcome = "failed"
)

// Response status words returned to the gateway.
const (
	StatusSuccess  = "success"
	StatusPending  = "pending"
	StatusReceived = "received"
)

// InternalError wraps an unexpected failure, such as a recovered panic in a
// collaborator. The caller sees a safe 500-class response.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "internal processing error: " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }

// Delivery is one inbound webhook request.
type Delivery struct {
	Body      []byte
	Signature string
}

// Result is what the pipeline reports back to the transport layer.
type Result struct {
	Outcome     Outcome
	Status      string
	PaymentID   string
	SubjectID   string
	Invites     []string
	GrantErrors []error
	Err         error
}

// RetryScheduler queues another attempt of a failed grant.
type RetryScheduler interface {
	ScheduleGrantRetry(ctx context.Context, grantor, subjectID, paymentID string) error
}

// InviteMailer delivers a minted invite to the paying subject.
type InviteMailer interface {
	SendInvite(ctx context.Context, to, inviteURL string) error
}

// Options wires the pipeline's collaborators. Only Ledger is required.
type Options struct {
	// IPNSecret enables signature verification when non-empty.
	IPNSecret string
	Grantors  []access.Grantor
	// Fanout receives the payment status message.
	Fanout *notify.Fanout
	// Operators receives minted invite links. Nil means log only.
	Operators *notify.Fanout
	// Mailer emails invites to subjects. Nil disables it.
	Mailer  InviteMailer
	Ledger  *entitlements.Ledger
	Guard   DeliveryGuard
	Retries RetryScheduler
	Audit   payments.AuditLog
	Now     func() time.Time
	// CallTimeout bounds each audit write and retry enqueue.
	// Defaults to access.DefaultCallTimeout.
	CallTimeout time.Duration
}

// Pipeline turns payment notifications into access grants and ledger entries.
type Pipeline struct {
	secret    string
	grantors  []access.Grantor
	fanout    *notify.Fanout
	operators *notify.Fanout
	mailer    InviteMailer
	ledger    *entitlements.Ledger
	guard     DeliveryGuard
	retries   RetryScheduler
	audit     payments.AuditLog
	now       func() time.Time
	timeout   time.Duration
}

func NewPipeline(opts Options) *Pipeline {
	p := &Pipeline{
		secret:    opts.IPNSecret,
		grantors:  opts.Grantors,
		fanout:    opts.Fanout,
		operators: opts.Operators,
		mailer:    opts.Mailer,
		ledger:    opts.Ledger,
		guard:     opts.Guard,
		retries:   opts.Retries,
		audit:     opts.Audit,
		now:       opts.Now,
		timeout:   opts.CallTimeout,
	}
	if p.ledger == nil {
		p.ledger = entitlements.NewLedger()
	}
	if p.guard == nil {
		p.guard = NewMemoryGuard(DefaultGuardTTL)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.timeout <= 0 {
		p.timeout = access.DefaultCallTimeout
	}
	if p.secret == "" {
		log.Warn("[Relay] IPN secret not set, webhook signatures are not verified")
	}
	return p
}

// Ledger exposes the entitlement ledger for read access.
func (p *Pipeline) Ledger() *entitlements.Ledger {
	return p.ledger
}

// Handle validates a delivery and, for a confirmed payment, grants access on
// every platform and records the entitlement. It never panics and never
// reports a grant failure to the caller.
func (p *Pipeline) Handle(ctx context.Context, d Delivery) (res Result) {
	started := time.Now()
	var eventID uint
	var claimed string

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Relay] Recovered from panic while handling payment %q: %v", res.PaymentID, r)
			if claimed != "" {
				p.release(claimed)
			}
			res = Result{
				Outcome:   OutcomeFailed,
				PaymentID: res.PaymentID,
				SubjectID: res.SubjectID,
				Err:       &InternalError{Err: fmt.Errorf("panic: %v", r)},
			}
		}
		p.finishAudit(ctx, eventID, res)
		metrics.WebhookDeliveriesTotal.WithLabelValues(string(res.Outcome)).Inc()
		metrics.WebhookProcessingDuration.Observe(time.Since(started).Seconds())
	}()

	signatureValid := p.verify(d)
	if !signatureValid {
		log.Warn("[Relay] Rejected webhook with invalid signature")
		eventID = p.startAudit(ctx, d, payments.Notification{}, false)
		return Result{Outcome: OutcomeUnauthorized, Err: payments.ErrInvalidSignature}
	}

	n, err := payments.ParseNotification(d.Body)
	if err != nil {
		log.Warnf("[Relay] Rejected webhook payload: %v", err)
		return Result{Outcome: OutcomeRejected, Err: err}
	}
	res.PaymentID = n.PaymentID()
	res.SubjectID = n.SubjectID()
	eventID = p.startAudit(ctx, d, n, true)

	if !n.IsConfirmed() {
		log.Infof("[Relay] Payment %s is %q, nothing to grant", n.PaymentID(), n.Status())
		res.Outcome = OutcomePending
		res.Status = StatusPending
		return res
	}

	if !p.claim(ctx, n.PaymentID()) {
		log.Infof("[Relay] Payment %s already processed, ignoring duplicate delivery", n.PaymentID())
		res.Outcome = OutcomeDuplicate
		res.Status = StatusReceived
		return res
	}
	claimed = n.PaymentID()

	return p.provision(ctx, n)
}

func (p *Pipeline) verify(d Delivery) bool {
	if p.secret == "" {
		return true
	}
	return payments.VerifyIPNSignature(d.Body, d.Signature, p.secret)
}

// claim fails open: if the guard is unreachable the delivery is processed,
// relying on idempotent grants and ledger writes.
func (p *Pipeline) claim(ctx context.Context, paymentID string) bool {
	ok, err := p.guard.Claim(ctx, paymentID)
	if err != nil {
		log.Warnf("[Relay] Delivery guard unavailable for payment %s: %v", paymentID, err)
		return true
	}
	return ok
}

func (p *Pipeline) release(paymentID string) {
	if err := p.guard.Release(context.Background(), paymentID); err != nil {
		log.Warnf("[Relay] Failed to release payment %s: %v", paymentID, err)
	}
}

func (p *Pipeline) provision(ctx context.Context, n payments.Notification) Result {
	subject := n.SubjectID()
	log.Infof("[Relay] Payment %s confirmed for %s", n.PaymentID(), subject)

	p.fanout.Broadcast(ctx, ComposeMessage(n))

	res := Result{
		Outcome:   OutcomeAcknowledged,
		Status:    StatusSuccess,
		PaymentID: n.PaymentID(),
		SubjectID: subject,
	}
	for _, g := range p.grantAll(ctx, subject) {
		if g.err != nil {
			log.Errorf("[Grant] %v", g.err)
			res.GrantErrors = append(res.GrantErrors, g.err)
			p.scheduleRetry(ctx, g.grantor, subject, n.PaymentID())
			continue
		}
		if g.grant.InviteURL != "" {
			res.Invites = append(res.Invites, g.grant.InviteURL)
			p.announceInvite(ctx, subject, g.grant.InviteURL)
		}
	}

	p.ledger.Upsert(subject, entitlements.Record{
		Paid:      true,
		GrantedAt: p.now(),
		PaymentID: n.PaymentID(),
	})
	metrics.EntitlementsActive.Set(float64(p.ledger.Len()))
	return res
}

type grantOutcome struct {
	grantor string
	grant   access.Grant
	err     error
}

// grantAll runs every grantor concurrently. One failing grantor never stops
// the others from being attempted.
func (p *Pipeline) grantAll(ctx context.Context, subject string) []grantOutcome {
	out := make([]grantOutcome, len(p.grantors))
	var wg sync.WaitGroup
	for i, g := range p.grantors {
		wg.Add(1)
		go func(i int, g access.Grantor) {
			defer wg.Done()
			out[i] = p.runGrant(ctx, g, subject)
		}(i, g)
	}
	wg.Wait()
	return out
}

func (p *Pipeline) runGrant(ctx context.Context, g access.Grantor, subject string) (o grantOutcome) {
	o.grantor = g.Name()
	defer func() {
		if r := recover(); r != nil {
			o.err = &access.GrantError{Grantor: g.Name(), SubjectID: subject, Err: fmt.Errorf("panic: %v", r)}
		}
		metrics.GrantAttemptsTotal.WithLabelValues(o.grantor, metrics.GrantResult(o.err)).Inc()
	}()

	grant, err := g.Grant(ctx, subject)
	if err != nil {
		var ge *access.GrantError
		if !errors.As(err, &ge) {
			err = &access.GrantError{Grantor: g.Name(), SubjectID: subject, Err: err}
		}
		o.err = err
		return o
	}
	o.grant = grant
	return o
}

func (p *Pipeline) scheduleRetry(ctx context.Context, grantor, subject, paymentID string) {
	if p.retries == nil {
		return
	}
	// the delivery may be near its deadline by now, the enqueue must still land
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.retries.ScheduleGrantRetry(ctx, grantor, subject, paymentID); err != nil {
		log.Errorf("[Relay] Could not schedule %s retry for %s: %v", grantor, subject, err)
	}
}

func (p *Pipeline) announceInvite(ctx context.Context, subject, url string) {
	log.Infof("[Relay] Discord invite for %s: %s", subject, url)
	p.operators.Broadcast(ctx, fmt.Sprintf("Discord invite for %s: %s", subject, url))
	if p.mailer != nil {
		if err := p.mailer.SendInvite(ctx, subject, url); err != nil {
			log.Warnf("[Relay] Could not email invite to %s: %v", subject, err)
		}
	}
}

// RetryGrant repeats a single grantor for a subject. It is the handler
// behind the grant retry queue.
func (p *Pipeline) RetryGrant(ctx context.Context, grantorName, subject string) error {
	for _, g := range p.grantors {
		if g.Name() != grantorName {
			continue
		}
		o := p.runGrant(ctx, g, subject)
		if o.err != nil {
			return o.err
		}
		if o.grant.InviteURL != "" {
			p.announceInvite(ctx, subject, o.grant.InviteURL)
		}
		log.Infof("[Relay] Retried %s grant for %s succeeded", grantorName, subject)
		return nil
	}
	return fmt.Errorf("unknown grantor %q", grantorName)
}

// Deactivate removes a subject's entitlement. Platform access is not revoked.
func (p *Pipeline) Deactivate(ctx context.Context, subject string) error {
	if err := p.ledger.Remove(subject); err != nil {
		return err
	}
	log.Infof("[Relay] User %s deactivated", subject)
	metrics.EntitlementsActive.Set(float64(p.ledger.Len()))
	return nil
}

// ComposeMessage renders the human-readable fanout text for a payment.
func ComposeMessage(n payments.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payment confirmed for %s: %s %s",
		n.SubjectID(), n.PriceAmount().String(), strings.ToLower(n.PaymentCurrency()))
	if n.PaymentID() != "" {
		fmt.Fprintf(&b, " (payment %s)", n.PaymentID())
	}
	return b.String()
}

func (p *Pipeline) startAudit(ctx context.Context, d Delivery, n payments.Notification, signatureValid bool) uint {
	if p.audit == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	id, err := p.audit.RecordWebhookEvent(ctx, payments.WebhookEventInput{
		PaymentID:      n.PaymentID(),
		PaymentStatus:  n.Status(),
		SubjectID:      n.SubjectID(),
		PayloadJSON:    string(d.Body),
		SignatureValid: signatureValid,
	})
	if err != nil {
		log.Warnf("[Relay] Failed to record webhook event: %v", err)
		return 0
	}
	return id
}

func (p *Pipeline) finishAudit(ctx context.Context, eventID uint, res Result) {
	if p.audit == nil || eventID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	procErr := res.Err
	if procErr == nil && len(res.GrantErrors) > 0 {
		procErr = errors.Join(res.GrantErrors...)
	}
	if err := p.audit.MarkWebhookProcessed(ctx, eventID, auditOutcome(res.Outcome), procErr); err != nil {
		log.Warnf("[Relay] Failed to mark webhook event %d: %v", eventID, err)
	}
}

func auditOutcome(o Outcome) string {
	switch o {
	case OutcomeAcknowledged:
		return models.WebhookOutcomeAcknowledged
	case OutcomePending:
		return models.WebhookOutcomeIgnored
	case OutcomeDuplicate:
		return models.WebhookOutcomeDuplicate
	case OutcomeFailed:
		return models.WebhookOutcomeFailed
	default:
		return models.WebhookOutcomeRejected
	}
}
