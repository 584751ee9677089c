// Package conversation implements the SMS qualification script as a pure
// state machine. Given the lead's current position, the inbound text and
// the tenant's prompt configuration it decides the next position, the
// field updates and the reply — and nothing else. Persistence, timestamps
// and sends belong to the caller.
package conversation

import (
	"regexp"
	"strings"
)

// State is the lead's position in the fixed qualification script.
// States only move forward; invalid input re-prompts without advancing.
type State string

const (
	StateNotStarted       State = "NOT_STARTED"
	StateAwaitingService  State = "AWAITING_SERVICE"
	StateAwaitingUrgency  State = "AWAITING_URGENCY"
	StateAwaitingZip      State = "AWAITING_ZIP"
	StateAwaitingBestTime State = "AWAITING_BEST_TIME"
	StateAwaitingName     State = "AWAITING_NAME"
	StateCompleted        State = "COMPLETED"
)

// PromptConfig carries the three tenant-configured service labels the
// opening prompt is rendered from.
type PromptConfig struct {
	ServiceLabel1 string
	ServiceLabel2 string
	ServiceLabel3 string
}

// Kind tags the outcome of a transition so callers can switch
// exhaustively instead of decoding flag combinations.
type Kind int

const (
	// KindAdvanced: input accepted, state moved forward (or held at the
	// terminal acknowledgment).
	KindAdvanced Kind = iota
	// KindRejected: input did not parse; state unchanged, reply re-prompts.
	KindRejected
	// KindCompleted: input accepted and the script just finished.
	KindCompleted
)

// FieldUpdates are the lead fields a successful transition captured.
// Nil pointers mean "not touched". ContactNameSet distinguishes an
// explicit clear-to-null (caller typed "skip") from an absent update.
type FieldUpdates struct {
	ServiceRequested    *string
	ServiceSelectionRaw *string
	Urgency             *string
	ZipCode             *string
	BestTime            *string
	ContactName         *string
	ContactNameSet      bool
}

// Result is the full outcome of one transition.
type Result struct {
	Kind      Kind
	NextState State
	Updates   FieldUpdates
	Reply     string

	// MarkQualified: the lead captured a service and should move to
	// QUALIFIED if still NEW.
	MarkQualified bool
	// NotifyOwner: enough information exists for the owner to act on.
	NotifyOwner bool
}

func ServicePrompt(cfg PromptConfig) string {
	return "Thanks for calling. What do you need help with? Reply 1 for " + cfg.ServiceLabel1 +
		", 2 for " + cfg.ServiceLabel2 + ", 3 for " + cfg.ServiceLabel3 +
		", or reply with a short description."
}

func UrgencyPrompt() string {
	return "How urgent is it? Reply 1 Emergency, 2 Today, 3 This week, 4 Quote."
}

func ZipPrompt() string {
	return "What is the job ZIP code?"
}

func BestTimePrompt() string {
	return "Best time for a callback? Reply morning, afternoon, or evening."
}

func NamePrompt() string {
	return "Optional: what name should we ask for? Reply with your name or type skip."
}

func CompletionPrompt() string {
	return "Thanks - we have your details and will reach out shortly."
}

const alreadyCompletedReply = "Thanks - we already have your request. We will follow up soon."

var (
	usZipPattern      = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
	genericZipPattern = regexp.MustCompile(`^[A-Za-z0-9\- ]{3,10}$`)
)

// Advance runs one transition of the qualification script.
func Advance(state State, body string, cfg PromptConfig) Result {
	text := strings.TrimSpace(body)

	switch state {
	case StateNotStarted:
		return Result{
			Kind:      KindAdvanced,
			NextState: StateAwaitingService,
			Reply:     ServicePrompt(cfg),
		}

	case StateAwaitingService:
		service := parseService(text, cfg)
		if service == "" {
			return reject(state, "Please reply 1, 2, or 3, or send a short service description. "+ServicePrompt(cfg))
		}
		raw := text
		if raw == "" {
			raw = service
		}
		return Result{
			Kind:          KindAdvanced,
			NextState:     StateAwaitingUrgency,
			Updates:       FieldUpdates{ServiceRequested: &service, ServiceSelectionRaw: &raw},
			Reply:         UrgencyPrompt(),
			MarkQualified: true,
		}

	case StateAwaitingUrgency:
		urgency := parseUrgency(text)
		if urgency == "" {
			return reject(state, "Please reply 1, 2, 3, or 4 for urgency. "+UrgencyPrompt())
		}
		return Result{
			Kind:      KindAdvanced,
			NextState: StateAwaitingZip,
			Updates:   FieldUpdates{Urgency: &urgency},
			Reply:     ZipPrompt(),
		}

	case StateAwaitingZip:
		zip := parseZip(text)
		if zip == "" {
			return reject(state, "Please reply with a valid ZIP/postal code.")
		}
		return Result{
			Kind:        KindAdvanced,
			NextState:   StateAwaitingBestTime,
			Updates:     FieldUpdates{ZipCode: &zip},
			Reply:       BestTimePrompt(),
			NotifyOwner: true,
		}

	case StateAwaitingBestTime:
		bestTime := parseBestTime(text)
		if bestTime == "" {
			return reject(state, "Please reply morning, afternoon, or evening.")
		}
		return Result{
			Kind:      KindAdvanced,
			NextState: StateAwaitingName,
			Updates:   FieldUpdates{BestTime: &bestTime},
			Reply:     NamePrompt(),
		}

	case StateAwaitingName:
		updates := FieldUpdates{ContactNameSet: true}
		if name := parseContactName(text); name != "" {
			updates.ContactName = &name
		}
		return Result{
			Kind:      KindCompleted,
			NextState: StateCompleted,
			Updates:   updates,
			Reply:     CompletionPrompt(),
		}

	case StateCompleted:
		// Terminal steady-state: acknowledge, change nothing.
		return Result{
			Kind:      KindAdvanced,
			NextState: StateCompleted,
			Reply:     alreadyCompletedReply,
		}

	default:
		// Unrecognized state. Re-issue the opening prompt without
		// mutating anything so a corrupted row cannot wedge the script.
		return reject(state, ServicePrompt(cfg))
	}
}

func reject(state State, reply string) Result {
	return Result{Kind: KindRejected, NextState: state, Reply: reply}
}

func parseService(text string, cfg PromptConfig) string {
	switch text {
	case "":
		return ""
	case "1":
		return cfg.ServiceLabel1
	case "2":
		return cfg.ServiceLabel2
	case "3":
		return cfg.ServiceLabel3
	}
	return text
}

var urgencySynonyms = map[string]string{
	"1":         "Emergency",
	"emergency": "Emergency",
	"urgent":    "Emergency",
	"2":         "Today",
	"today":     "Today",
	"asap":      "Today",
	"3":         "This week",
	"week":      "This week",
	"this week": "This week",
	"4":         "Quote",
	"quote":     "Quote",
	"estimate":  "Quote",
}

func parseUrgency(text string) string {
	return urgencySynonyms[strings.ToLower(text)]
}

func parseZip(text string) string {
	if text == "" {
		return ""
	}
	if usZipPattern.MatchString(text) {
		return text
	}
	if genericZipPattern.MatchString(text) {
		return strings.ToUpper(text)
	}
	return ""
}

var bestTimeSynonyms = map[string]string{
	"1":         "Morning",
	"morning":   "Morning",
	"am":        "Morning",
	"2":         "Afternoon",
	"afternoon": "Afternoon",
	"pm":        "Afternoon",
	"3":         "Evening",
	"evening":   "Evening",
	"tonight":   "Evening",
}

func parseBestTime(text string) string {
	return bestTimeSynonyms[strings.ToLower(text)]
}

func parseContactName(text string) string {
	switch strings.ToLower(text) {
	case "", "skip", "no", "n/a", "na":
		return ""
	}
	return text
}
