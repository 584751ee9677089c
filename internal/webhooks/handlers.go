package webhooks

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"callbackcloser/internal/telephony"
	"callbackcloser/internal/webhookauth"
	"callbackcloser/pkg/logger"
)

// Handlers adapts the webhook flows to gin. Authentication failures are
// the only non-200 responses; everything else acknowledges with TwiML
// so the provider does not retry against internal faults.
type Handlers struct {
	Auth    *webhookauth.Authenticator
	Service *Service
}

func (h Handlers) authenticate(c *gin.Context) bool {
	// Signature verification covers the POST parameters, so the form
	// must be parsed before the check. A malformed body gets the empty
	// acknowledgment; the boundary answers markup or 401, nothing else.
	if err := c.Request.ParseForm(); err != nil {
		logger.FromGin(c).Warn("webhook form parse failed", "err", err)
		h.respondAck(c)
		return false
	}
	res := h.Auth.Authenticate(c.Request)
	if !res.Allowed {
		logger.FromGin(c).Warn("webhook rejected",
			"decision", string(res.Decision),
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	return true
}

func (h Handlers) respondXML(c *gin.Context, twiml string) {
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twiml)
}

// respondAck writes the empty acknowledgment used whenever a flow
// cannot produce TwiML.
func (h Handlers) respondAck(c *gin.Context) {
	ack, _ := telephony.MessagingTwiML("")
	h.respondXML(c, ack)
}

// HandleVoice is POST /webhooks/twilio/voice.
func (h Handlers) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.authenticate(c) {
		return
	}

	form, err := telephony.ParseVoiceForm(c.Request)
	if err != nil {
		log.Warn("voice webhook parse failed", "err", err)
		h.respondAck(c)
		return
	}

	twiml, err := h.Service.HandleVoice(c.Request.Context(), form)
	if err != nil {
		log.Error("voice flow failed", "err", err, "call_sid", form.CallSID)
		h.respondAck(c)
		return
	}
	h.respondXML(c, twiml)
}

// HandleDialStatus is POST /webhooks/twilio/status.
func (h Handlers) HandleDialStatus(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.authenticate(c) {
		return
	}

	form, err := telephony.ParseDialStatusForm(c.Request)
	if err != nil {
		log.Warn("status webhook parse failed", "err", err)
		h.respondAck(c)
		return
	}

	twiml, err := h.Service.HandleDialStatus(c.Request.Context(), form)
	if err != nil {
		log.Error("status flow failed", "err", err, "call_sid", form.CallSID)
		h.respondAck(c)
		return
	}
	h.respondXML(c, twiml)
}

// HandleInboundSMS is POST /webhooks/twilio/sms.
func (h Handlers) HandleInboundSMS(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.authenticate(c) {
		return
	}

	form, err := telephony.ParseSmsForm(c.Request)
	if err != nil {
		log.Warn("sms webhook parse failed", "err", err)
		h.respondAck(c)
		return
	}

	twiml, err := h.Service.HandleInboundSMS(c.Request.Context(), form)
	if err != nil {
		log.Error("sms flow failed", "err", err, "message_sid", form.MessageSID)
		h.respondAck(c)
		return
	}
	h.respondXML(c, twiml)
}
