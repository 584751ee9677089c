// Package webhooks implements the three provider callback flows: the
// inbound voice leg, the dial outcome, and inbound SMS. Each flow is a
// decision pipeline over the ledger; every exit is tagged with a
// decision string that goes to both the structured log and the audit
// trail. Webhook handlers always acknowledge with TwiML so the provider
// never retries on our internal errors.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callbackcloser/internal/audit"
	"callbackcloser/internal/business"
	"callbackcloser/internal/compliance"
	"callbackcloser/internal/conversation"
	"callbackcloser/internal/ledger"
	"callbackcloser/internal/messaging"
	"callbackcloser/internal/phone"
	"callbackcloser/internal/telephony"
	"callbackcloser/internal/usage"
	"callbackcloser/pkg/logger"
	"callbackcloser/pkg/utils"
)

// Config carries the request-independent wiring for the flows.
type Config struct {
	// AppName prefixes compliance replies and owner notifications.
	AppName string
	// StatusCallbackURL is the absolute Dial action URL, webhook token
	// included. It doubles as the recording status callback.
	StatusCallbackURL string
	// LeadURL renders the dashboard link embedded in owner alerts.
	LeadURL func(leadID string) string
}

type Service struct {
	cfg        Config
	repo       ledger.Repository
	businesses business.Repository
	messenger  *messaging.Service
	consent    *compliance.Service
	usage      *usage.Service
	audit      *audit.Service
	guard      utils.SendGuard
	clock      func() time.Time
}

func NewService(
	cfg Config,
	repo ledger.Repository,
	businesses business.Repository,
	messenger *messaging.Service,
	consent *compliance.Service,
	usageSvc *usage.Service,
	auditSvc *audit.Service,
	guard utils.SendGuard,
) *Service {
	if cfg.AppName == "" {
		cfg.AppName = "CallbackCloser"
	}
	if cfg.LeadURL == nil {
		cfg.LeadURL = func(leadID string) string { return "/app/leads/" + leadID }
	}
	return &Service{
		cfg:        cfg,
		repo:       repo,
		businesses: businesses,
		messenger:  messenger,
		consent:    consent,
		usage:      usageSvc,
		audit:      auditSvc,
		guard:      guard,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// logDecision tags the flow outcome in the log and, best-effort, the
// audit trail. Audit failures never affect webhook processing.
func (s *Service) logDecision(ctx context.Context, t audit.EventType, businessID, decision, callSID, messageSID, leadID, msg string) {
	log := logger.From(ctx)
	log.Info(msg,
		"route", string(t),
		"decision", decision,
		"business_id", businessID,
		"call_sid", callSID,
		"message_sid", messageSID,
		"lead_id", leadID,
	)
	if s.audit == nil || businessID == "" {
		return
	}
	if err := s.audit.LogDecision(ctx, businessID, t, decision, callSID, messageSID, leadID, msg); err != nil {
		log.Warn("audit append failed", "err", err)
	}
}

/* ===================== voice ===================== */

// HandleVoice answers the inbound call: record the call leg and forward
// to the owner's phone with a ring timeout. Unknown numbers get an
// apology and a hangup.
func (s *Service) HandleVoice(ctx context.Context, form telephony.VoiceForm) (string, error) {
	log := logger.From(ctx)

	to := phone.Normalize(form.To)
	from := phone.Normalize(form.From)

	biz, err := s.businesses.FindByInboundNumber(ctx, to, form.To)
	if err != nil {
		if !errors.Is(err, business.ErrNotFound) {
			log.Error("business lookup failed", "err", err, "to", to)
		}
		s.logDecision(ctx, audit.EventTypeVoiceWebhook, "", "reject_unconfigured_number", form.CallSID, "", "", "no business owns the dialed number")
		return telephony.VoiceRejectTwiML("")
	}

	if form.CallSID != "" {
		upsert := ledger.CallUpsert{
			BusinessID:          biz.ID,
			ProviderCallSID:     form.CallSID,
			FromPhone:           orRaw(from, form.From),
			FromPhoneNormalized: orRaw(from, form.From),
			ToPhone:             orRaw(to, form.To),
			ToPhoneNormalized:   orRaw(to, form.To),
			RawPayload:          form.RawPayload,
		}
		if form.ParentCallSID != "" {
			upsert.ParentCallSID = &form.ParentCallSID
		}
		if _, err := s.repo.UpsertCall(ctx, upsert); err != nil {
			// The forward must still happen; the status callback will
			// upsert the call again.
			log.Error("call upsert failed", "err", err, "call_sid", form.CallSID)
		}
	}

	s.logDecision(ctx, audit.EventTypeVoiceWebhook, biz.ID, "forward_call", form.CallSID, "", "", "forwarding inbound call")

	plan := telephony.DialPlan{
		ForwardTo:      biz.ForwardingNumber,
		TimeoutSeconds: biz.MissedCallSeconds,
		ActionURL:      s.cfg.StatusCallbackURL,
		CallerID:       biz.TwilioPhoneNumber,
	}
	if biz.RecordCalls {
		plan.RecordingCallbackURL = s.cfg.StatusCallbackURL
	}
	return telephony.VoiceDialTwiML(plan)
}

/* ===================== dial status ===================== */

// HandleDialStatus processes the dial outcome. Missed calls open a lead
// and, subscription and usage permitting, start the qualification
// conversation with exactly one first text per lead.
func (s *Service) HandleDialStatus(ctx context.Context, form telephony.DialStatusForm) (string, error) {
	log := logger.From(ctx)

	// Recording-only callbacks carry no dial outcome; persist the
	// metadata and stop.
	if form.IsRecordingOnly() && form.CallSID != "" {
		updated, err := s.repo.UpdateCallRecording(ctx, form.CallSID, form.Recording, form.RawPayload)
		if err != nil {
			log.Error("recording update failed", "err", err, "call_sid", form.CallSID)
		}
		decision := "update_call_recording_metadata"
		if !updated {
			decision = "noop_call_not_found"
		}
		s.logDecision(ctx, audit.EventTypeStatusWebhook, "", decision, form.CallSID, "", "", "recording status callback")
		return telephony.MessagingTwiML("")
	}

	to := phone.Normalize(form.To)
	if to == "" || form.CallSID == "" {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, "", "noop_missing_to_or_call_sid", form.CallSID, "", "", "status callback missing required fields")
		return telephony.MessagingTwiML("")
	}

	biz, err := s.businesses.FindByInboundNumber(ctx, to, form.To)
	if err != nil {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, "", "noop_business_not_found", form.CallSID, "", "", "no business owns the dialed number")
		return telephony.MessagingTwiML("")
	}

	answered := telephony.IsAnsweredDialStatus(form.DialCallStatus)
	missed := telephony.IsMissedDialStatus(form.DialCallStatus)

	status := ledger.CallCompleted
	switch {
	case answered:
		status = ledger.CallAnswered
	case missed:
		status = ledger.CallMissed
	}

	from := phone.Normalize(form.From)
	upsert := ledger.CallUpsert{
		BusinessID:              biz.ID,
		ProviderCallSID:         form.CallSID,
		FromPhone:               orRaw(from, form.From),
		FromPhoneNormalized:     orRaw(from, form.From),
		ToPhone:                 orRaw(to, form.To),
		ToPhoneNormalized:       orRaw(to, form.To),
		Status:                  &status,
		Answered:                &answered,
		Missed:                  &missed,
		CallDurationSeconds:     form.CallDurationSeconds,
		DialCallDurationSeconds: form.DialCallDurationSeconds,
		Recording:               form.Recording,
		RawPayload:              form.RawPayload,
	}
	if form.ParentCallSID != "" {
		upsert.ParentCallSID = &form.ParentCallSID
	}
	if form.DialCallSID != "" {
		upsert.DialCallSID = &form.DialCallSID
	}
	if form.DialCallStatus != "" {
		upsert.DialCallStatus = &form.DialCallStatus
	}

	call, err := s.repo.UpsertCall(ctx, upsert)
	if err != nil {
		log.Error("call upsert failed", "err", err, "call_sid", form.CallSID)
		return telephony.MessagingTwiML("")
	}

	if !missed {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "noop_not_missed", form.CallSID, "", "", "dial outcome is not a missed call")
		return telephony.MessagingTwiML("")
	}

	callerPhone := orRaw(from, form.From)
	lead, created, err := s.repo.FindOrCreateLeadByCall(ctx, ledger.Lead{
		BusinessID:            biz.ID,
		CallID:                call.ID,
		CallerPhone:           callerPhone,
		CallerPhoneNormalized: callerPhone,
		BillingRequired:       !biz.SubscriptionIsActive(),
		LastInteractionAt:     timePtr(s.clock()),
	})
	if err != nil {
		log.Error("lead find-or-create failed", "err", err, "call_sid", form.CallSID)
		return telephony.MessagingTwiML("")
	}
	if created {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "create_lead", form.CallSID, "", lead.ID, "lead opened for missed call")
	} else {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "reuse_existing_lead", form.CallSID, "", lead.ID, "duplicate callback reused existing lead")
	}

	if !biz.SubscriptionIsActive() {
		if !lead.BillingRequired {
			if _, err := s.repo.UpdateLead(ctx, lead.ID, ledger.LeadPatch{BillingRequired: ledger.Set(true)}); err != nil {
				log.Warn("billing flag update failed", "err", err, "lead_id", lead.ID)
			}
		}
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "noop_billing_inactive", form.CallSID, "", lead.ID, "subscription inactive, no automated follow-up")
		return telephony.MessagingTwiML("")
	}

	if biz.TwilioPhoneNumber == "" {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "noop_missing_sending_number", form.CallSID, "", lead.ID, "business has no sending number")
		return telephony.MessagingTwiML("")
	}
	if lead.SmsStartedAt != nil {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "noop_sms_already_started", form.CallSID, "", lead.ID, "conversation already started for this lead")
		return telephony.MessagingTwiML("")
	}

	s.startConversation(ctx, biz, lead, form.CallSID)
	return telephony.MessagingTwiML("")
}

// startConversation owns the single-first-text guarantee: a short-lived
// distributed guard narrows the race window, and the conditional
// started-claim on the lead row decides the winner. The claim happens
// before the provider send; a failed or suppressed send compensates by
// clearing it.
func (s *Service) startConversation(ctx context.Context, biz business.Business, lead ledger.Lead, callSID string) {
	log := logger.From(ctx)

	if s.guard != nil {
		ok, release, err := s.guard.Acquire(ctx, "sms-start:"+lead.ID)
		if err != nil {
			log.Warn("send guard unavailable", "err", err, "lead_id", lead.ID)
		} else {
			if !ok {
				s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "noop_concurrent_start_in_flight", callSID, "", lead.ID, "another callback is starting this conversation")
				return
			}
			defer release()
		}
	}

	u, err := s.usage.ForBusiness(ctx, biz)
	if err != nil {
		log.Error("usage check failed", "err", err, "business_id", biz.ID)
		return
	}
	if u.LimitReached() {
		s.handleLimitReached(ctx, biz, lead, callSID, u)
		return
	}

	now := s.clock()
	claimed, err := s.repo.MarkConversationStarted(ctx, lead.ID, now)
	if err != nil {
		log.Error("conversation claim failed", "err", err, "lead_id", lead.ID)
		return
	}
	if !claimed {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "noop_sms_already_started", callSID, "", lead.ID, "conversation claim lost to a concurrent callback")
		return
	}

	l1, l2, l3 := biz.PromptLabels()
	prompt := conversation.ServicePrompt(conversation.PromptConfig{
		ServiceLabel1: l1,
		ServiceLabel2: l2,
		ServiceLabel3: l3,
	})

	res, err := s.messenger.SendOutbound(ctx, biz.ID, &lead.ID, ledger.ParticipantLead, biz.TwilioPhoneNumber, lead.CallerPhoneNormalized, prompt)
	if err != nil {
		// Give the claim back so a caller retry can start the
		// conversation once the provider recovers.
		if cerr := s.repo.ClearConversationStart(ctx, lead.ID); cerr != nil {
			log.Error("claim rollback failed", "err", cerr, "lead_id", lead.ID)
		}
		if _, perr := s.repo.UpdateLead(ctx, lead.ID, ledger.LeadPatch{
			LastInteractionAt: ledger.Set(s.clock()),
		}); perr != nil {
			log.Warn("lead touch failed", "err", perr, "lead_id", lead.ID)
		}
		log.Error("initial sms send failed", "err", err, "lead_id", lead.ID)
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "initial_sms_failed", callSID, "", lead.ID, "first outbound send failed, claim released")
		return
	}
	if res.Suppressed {
		if cerr := s.repo.ClearConversationStart(ctx, lead.ID); cerr != nil {
			log.Error("claim rollback failed", "err", cerr, "lead_id", lead.ID)
		}
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "skip_opted_out_recipient", callSID, "", lead.ID, "caller has opted out, no follow-up sent")
		return
	}

	if _, err := s.repo.UpdateLead(ctx, lead.ID, ledger.LeadPatch{
		SmsState:          ledger.Set(conversation.StateAwaitingService),
		BillingRequired:   ledger.Set(false),
		LastOutboundAt:    ledger.Set(now),
		LastInteractionAt: ledger.Set(now),
	}); err != nil {
		log.Error("lead update after first send failed", "err", err, "lead_id", lead.ID)
		return
	}
	s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "send_initial_sms_and_mark_started", callSID, res.Sent.SID, lead.ID, "qualification conversation started")
}

func (s *Service) handleLimitReached(ctx context.Context, biz business.Business, lead ledger.Lead, callSID string, u usage.ConversationUsage) {
	log := logger.From(ctx)

	log.Warn("usage limit reached",
		"business_id", biz.ID,
		"lead_id", lead.ID,
		"usage", u.Describe(),
	)
	if _, err := s.repo.UpdateLead(ctx, lead.ID, ledger.LeadPatch{
		BillingRequired:   ledger.Set(true),
		LastInteractionAt: ledger.Set(s.clock()),
	}); err != nil {
		log.Warn("lead update failed", "err", err, "lead_id", lead.ID)
	}
	s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "skip_initial_sms_usage_limit", callSID, "", lead.ID, "monthly conversation limit reached")

	if biz.NotifyPhone == "" {
		return
	}
	body := fmt.Sprintf("%s: Monthly conversation limit reached (%d/%d). Missed call was recorded, but automated SMS follow-up was not sent.",
		s.cfg.AppName, u.Used, u.Limit)
	res, err := s.messenger.SendOutbound(ctx, biz.ID, &lead.ID, ledger.ParticipantOwner, biz.TwilioPhoneNumber, biz.NotifyPhone, body)
	if err != nil {
		log.Error("owner limit notification failed", "err", err, "business_id", biz.ID)
		return
	}
	if res.Suppressed {
		s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "owner_notification_suppressed_opted_out", callSID, "", lead.ID, "owner phone opted out of texts")
		return
	}
	s.logDecision(ctx, audit.EventTypeStatusWebhook, biz.ID, "owner_notification_sent", callSID, res.Sent.SID, lead.ID, "owner notified of usage limit")
}

/* ===================== inbound sms ===================== */

// HandleInboundSMS records the message, gives carrier compliance
// keywords absolute precedence, then advances the qualification script.
func (s *Service) HandleInboundSMS(ctx context.Context, form telephony.SmsForm) (string, error) {
	log := logger.From(ctx)

	to := phone.Normalize(form.To)
	from := phone.Normalize(form.From)
	if to == "" || from == "" {
		s.logDecision(ctx, audit.EventTypeSmsWebhook, "", "noop_missing_to_or_from", "", form.MessageSID, "", "inbound sms missing phone fields")
		return telephony.MessagingTwiML("")
	}

	biz, err := s.businesses.FindByInboundNumber(ctx, to, form.To)
	if err != nil {
		s.logDecision(ctx, audit.EventTypeSmsWebhook, "", "noop_business_not_found", "", form.MessageSID, "", "no business owns the receiving number")
		return telephony.MessagingTwiML("")
	}

	var lead *ledger.Lead
	if found, err := s.repo.FindLatestLeadForCaller(ctx, biz.ID, from); err == nil {
		lead = &found
	} else if !errors.Is(err, ledger.ErrNotFound) {
		log.Error("lead lookup failed", "err", err, "business_id", biz.ID)
	}

	var leadID *string
	if lead != nil {
		leadID = &lead.ID
	}
	inbound, err := s.messenger.PersistInbound(ctx, biz.ID, leadID, form.MessageSID, form.From, form.To, form.Body, form.RawPayload)
	if err != nil {
		log.Error("inbound persist failed", "err", err, "message_sid", form.MessageSID)
		return telephony.MessagingTwiML("")
	}
	// Compliance keywords outrank everything: mid-conversation state,
	// opt-out suppression of the confirmation itself, and duplicate
	// redelivery. A re-delivered STOP still gets its confirmation; the
	// consent upsert is idempotent.
	var msgSID *string
	if form.MessageSID != "" {
		msgSID = &form.MessageSID
	}
	comp, err := s.consent.HandleInbound(ctx, biz.ID, form.From, form.Body, msgSID)
	if err != nil {
		log.Error("compliance handling failed", "err", err, "message_sid", form.MessageSID)
		return telephony.MessagingTwiML("")
	}
	if comp.Handled {
		s.finishCompliance(ctx, biz, lead, form, comp)
		return telephony.MessagingTwiML("")
	}

	if inbound.Duplicate {
		s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "noop_duplicate_delivery", "", form.MessageSID, deref(leadID), "provider redelivered a stored message")
		return telephony.MessagingTwiML("")
	}

	if lead == nil {
		s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "noop_no_lead_for_caller", "", form.MessageSID, "", "inbound sms from unknown caller")
		return telephony.MessagingTwiML("")
	}

	now := s.clock()
	if _, err := s.repo.UpdateLead(ctx, lead.ID, ledger.LeadPatch{
		LastInboundAt:     ledger.Set(now),
		LastInteractionAt: ledger.Set(now),
	}); err != nil {
		log.Warn("lead touch failed", "err", err, "lead_id", lead.ID)
	}

	if !biz.SubscriptionIsActive() || lead.BillingRequired || biz.TwilioPhoneNumber == "" {
		s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "noop_billing_gated", "", form.MessageSID, lead.ID, "billing state blocks automated replies")
		return telephony.MessagingTwiML("")
	}

	s.advanceConversation(ctx, biz, *lead, form)
	return telephony.MessagingTwiML("")
}

func (s *Service) finishCompliance(ctx context.Context, biz business.Business, lead *ledger.Lead, form telephony.SmsForm, comp compliance.Result) {
	log := logger.From(ctx)

	var leadID *string
	if lead != nil {
		leadID = &lead.ID
		now := s.clock()
		if _, err := s.repo.UpdateLead(ctx, lead.ID, ledger.LeadPatch{
			LastInboundAt:     ledger.Set(now),
			LastInteractionAt: ledger.Set(now),
		}); err != nil {
			log.Warn("lead touch failed", "err", err, "lead_id", lead.ID)
		}
	}

	fromNumber := biz.TwilioPhoneNumber
	if fromNumber == "" {
		fromNumber = form.To
	}
	res, err := s.messenger.SendComplianceReply(ctx, biz.ID, leadID, fromNumber, form.From, comp.ReplyText)
	if err != nil {
		log.Error("compliance reply send failed", "err", err, "message_sid", form.MessageSID)
		s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "compliance_reply_failed", "", form.MessageSID, deref(leadID), "compliance "+string(comp.StateChange))
		return
	}
	s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "compliance_"+string(comp.StateChange), "", res.Sent.SID, deref(leadID), "compliance keyword handled: "+string(comp.Command))
}

func (s *Service) advanceConversation(ctx context.Context, biz business.Business, lead ledger.Lead, form telephony.SmsForm) {
	log := logger.From(ctx)

	l1, l2, l3 := biz.PromptLabels()
	res := conversation.Advance(lead.SmsState, form.Body, conversation.PromptConfig{
		ServiceLabel1: l1,
		ServiceLabel2: l2,
		ServiceLabel3: l3,
	})

	now := s.clock()
	patch := ledger.LeadPatch{
		LastInboundAt:     ledger.Set(now),
		LastInteractionAt: ledger.Set(now),
	}
	if res.Kind != conversation.KindRejected {
		patch.SmsState = ledger.Set(res.NextState)
	}
	applyUpdates(&patch, res.Updates)
	if res.MarkQualified && lead.Status == ledger.LeadNew {
		patch.Status = ledger.Set(ledger.LeadQualified)
	}
	if res.Kind == conversation.KindCompleted {
		patch.SmsCompletedAt = ledger.Set(now)
	}

	updated, err := s.repo.UpdateLead(ctx, lead.ID, patch)
	if err != nil {
		log.Error("lead update failed", "err", err, "lead_id", lead.ID)
		return
	}

	if res.NotifyOwner && updated.OwnerNotifiedAt == nil && biz.NotifyPhone != "" {
		s.notifyOwner(ctx, biz, updated, form)
	}

	reply, err := s.messenger.SendOutbound(ctx, biz.ID, &updated.ID, ledger.ParticipantLead, biz.TwilioPhoneNumber, updated.CallerPhoneNormalized, res.Reply)
	if err != nil {
		log.Error("conversation reply send failed", "err", err, "lead_id", updated.ID)
		return
	}
	if reply.Suppressed {
		s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "skip_opted_out_recipient", "", form.MessageSID, updated.ID, "reply suppressed: caller opted out")
		return
	}
	if _, err := s.repo.UpdateLead(ctx, updated.ID, ledger.LeadPatch{
		LastOutboundAt:    ledger.Set(s.clock()),
		LastInteractionAt: ledger.Set(s.clock()),
	}); err != nil {
		log.Warn("lead touch failed", "err", err, "lead_id", updated.ID)
	}

	decision := "advance_conversation"
	switch res.Kind {
	case conversation.KindRejected:
		decision = "reprompt_unparsed_input"
	case conversation.KindCompleted:
		decision = "complete_conversation"
	}
	s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, decision, "", form.MessageSID, updated.ID, "conversation state: "+string(updated.SmsState))
}

func (s *Service) notifyOwner(ctx context.Context, biz business.Business, lead ledger.Lead, form telephony.SmsForm) {
	log := logger.From(ctx)

	body := messaging.BuildOwnerNotification(messaging.OwnerNotification{
		BusinessName:     biz.Name,
		CallerPhone:      lead.CallerPhoneNormalized,
		ServiceRequested: lead.ServiceRequested,
		Urgency:          lead.Urgency,
		ZipCode:          lead.ZipCode,
		BestTime:         lead.BestTime,
		LeadURL:          s.cfg.LeadURL(lead.ID),
	})
	res, err := s.messenger.SendOutbound(ctx, biz.ID, &lead.ID, ledger.ParticipantOwner, biz.TwilioPhoneNumber, biz.NotifyPhone, body)
	if err != nil {
		log.Error("owner notification failed", "err", err, "lead_id", lead.ID)
		return
	}
	if res.Suppressed {
		s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "owner_notification_suppressed_opted_out", "", form.MessageSID, lead.ID, "owner phone opted out of texts")
		return
	}

	now := s.clock()
	if _, err := s.repo.UpdateLead(ctx, lead.ID, ledger.LeadPatch{
		OwnerNotifiedAt: ledger.Set(now),
		LastOutboundAt:  ledger.Set(now),
	}); err != nil {
		log.Warn("owner-notified flag update failed", "err", err, "lead_id", lead.ID)
	}
	s.logDecision(ctx, audit.EventTypeSmsWebhook, biz.ID, "owner_notification_sent", "", res.Sent.SID, lead.ID, "owner notified of qualified lead")
}

func applyUpdates(patch *ledger.LeadPatch, u conversation.FieldUpdates) {
	if u.ServiceRequested != nil {
		patch.ServiceRequested = ledger.Set(*u.ServiceRequested)
	}
	if u.ServiceSelectionRaw != nil {
		patch.ServiceSelectionRaw = ledger.Set(*u.ServiceSelectionRaw)
	}
	if u.Urgency != nil {
		patch.Urgency = ledger.Set(*u.Urgency)
	}
	if u.ZipCode != nil {
		patch.ZipCode = ledger.Set(*u.ZipCode)
	}
	if u.BestTime != nil {
		patch.BestTime = ledger.Set(*u.BestTime)
	}
	if u.ContactNameSet {
		if u.ContactName == nil {
			patch.ContactName = ledger.SetNull[string]()
		} else {
			patch.ContactName = ledger.Set(*u.ContactName)
		}
	}
}

func orRaw(normalized, raw string) string {
	if normalized != "" {
		return normalized
	}
	return raw
}

func timePtr(t time.Time) *time.Time { return &t }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
