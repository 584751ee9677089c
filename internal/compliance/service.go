package compliance

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"callbackcloser/internal/phone"
)

var stopKeywords = map[string]struct{}{
	"STOP": {}, "STOPALL": {}, "UNSUBSCRIBE": {}, "CANCEL": {}, "END": {}, "QUIT": {},
}

var startKeywords = map[string]struct{}{
	"START": {}, "YES": {}, "UNSTOP": {},
}

var helpKeywords = map[string]struct{}{
	"HELP": {},
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizeKeyword extracts the first whitespace-separated token of an
// inbound body, uppercased and stripped of punctuation. "Stop!" and
// "STOP please" both normalize to "STOP".
func NormalizeKeyword(body string) string {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return ""
	}
	return nonAlnum.ReplaceAllString(strings.ToUpper(fields[0]), "")
}

// Classify maps an inbound body onto a compliance command, or "" when
// the body is ordinary conversation text.
func Classify(body string) Command {
	keyword := NormalizeKeyword(body)
	if keyword == "" {
		return ""
	}
	if _, ok := stopKeywords[keyword]; ok {
		return CommandStop
	}
	if _, ok := startKeywords[keyword]; ok {
		return CommandStart
	}
	if _, ok := helpKeywords[keyword]; ok {
		return CommandHelp
	}
	return ""
}

// Reply builds the mandated confirmation text for a command.
func Reply(cmd Command, appName string) string {
	if appName == "" {
		appName = "CallbackCloser"
	}
	switch cmd {
	case CommandStop:
		return fmt.Sprintf("%s: You are unsubscribed and will no longer receive messages. Reply START to opt back in.", appName)
	case CommandStart:
		return fmt.Sprintf("%s: You are opted back in. Reply HELP for help or STOP to opt out.", appName)
	default:
		return fmt.Sprintf("%s: Missed-call follow-up texts for your service request. Reply STOP to opt out or START to opt back in.", appName)
	}
}

// StateChange describes what handling a command did to consent state.
type StateChange string

const (
	ChangeOptedOut StateChange = "opted_out"
	ChangeOptedIn  StateChange = "opted_in"
	ChangeHelpOnly StateChange = "help_only"
)

// Result of HandleInbound. Handled=false means the message is not a
// compliance keyword and normal conversation processing should run.
type Result struct {
	Handled     bool
	Command     Command
	ReplyText   string
	StateChange StateChange
}

// Service classifies inbound compliance keywords and persists consent.
type Service struct {
	store   Store
	appName string
	clock   func() time.Time
}

func NewService(store Store, appName string) *Service {
	return &Service{
		store:   store,
		appName: appName,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// HandleInbound processes a possible compliance keyword. STOP and START
// persist a consent preference; HELP replies without touching state.
// Compliance replies must be delivered even to opted-out numbers, so
// callers send Result.ReplyText outside any suppression gate.
func (s *Service) HandleInbound(ctx context.Context, businessID, fromPhone, body string, messageSID *string) (Result, error) {
	cmd := Classify(body)
	if cmd == "" {
		return Result{}, nil
	}

	reply := Reply(cmd, s.appName)
	if cmd == CommandHelp {
		return Result{Handled: true, Command: cmd, ReplyText: reply, StateChange: ChangeHelpOnly}, nil
	}

	normalized := phone.Normalize(fromPhone)
	if normalized == "" {
		normalized = strings.TrimSpace(fromPhone)
	}
	if normalized != "" {
		_, err := s.store.UpsertPreference(ctx, Preference{
			BusinessID:       businessID,
			PhoneNormalized:  normalized,
			PhoneRawLastSeen: fromPhone,
			Command:          cmd,
			MessageSID:       messageSID,
			At:               s.clock(),
		})
		if err != nil {
			return Result{}, err
		}
	}

	change := ChangeOptedIn
	if cmd == CommandStop {
		change = ChangeOptedOut
	}
	return Result{Handled: true, Command: cmd, ReplyText: reply, StateChange: change}, nil
}

// IsOptedOut reports whether conversation texts to this number are
// suppressed for the business.
func (s *Service) IsOptedOut(ctx context.Context, businessID, phoneNumber string) (bool, error) {
	normalized := phone.Normalize(phoneNumber)
	if normalized == "" {
		normalized = strings.TrimSpace(phoneNumber)
	}
	if normalized == "" {
		return false, nil
	}
	return s.store.IsOptedOut(ctx, businessID, normalized)
}
