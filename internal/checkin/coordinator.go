// Package checkin coordinates well-being check-in conversations: it owns
// the turn lifecycle, the question budget, resume-on-reconnect, and the
// wrap-up that fetches insights and requests the employee report.
package checkin

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/pulse/internal/capture"
	"github.com/antoniostano/pulse/internal/gateway"
	"github.com/antoniostano/pulse/internal/notify"
	"github.com/antoniostano/pulse/internal/observability"
	"github.com/antoniostano/pulse/internal/playback"
	"github.com/antoniostano/pulse/internal/policy"
	"github.com/antoniostano/pulse/internal/protocol"
	"github.com/antoniostano/pulse/internal/session"
	"github.com/antoniostano/pulse/internal/store"
	"github.com/antoniostano/pulse/internal/transcript"
)

// Outcome classifies how a submitted turn ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
	OutcomeEnded    Outcome = "ended"
)

// TurnResult is the synchronous answer to a submitted turn.
type TurnResult struct {
	Outcome        Outcome                `json:"outcome"`
	Reason         string                 `json:"reason,omitempty"`
	Reply          *transcript.Message    `json:"reply,omitempty"`
	MessageType    transcript.MessageType `json:"message_type"`
	TurnsRemaining int                    `json:"turns_remaining"`
	Ended          bool                   `json:"ended"`
}

type Config struct {
	Sessions       *session.Manager
	Backend        gateway.Client
	Store          store.Store
	Notifier       notify.Notifier
	Metrics        *observability.Metrics
	Capture        *capture.Service
	Speaker        *playback.Speaker
	TotalQuestions int
	TurnTimeout    time.Duration
}

type Coordinator struct {
	sessions       *session.Manager
	backend        gateway.Client
	store          store.Store
	notifier       notify.Notifier
	metrics        *observability.Metrics
	capture        *capture.Service
	speaker        *playback.Speaker
	totalQuestions int
	turnTimeout    time.Duration
	bus            *eventBus
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.TotalQuestions <= 0 {
		cfg.TotalQuestions = 5
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 45 * time.Second
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.LogNotifier{}
	}
	c := &Coordinator{
		sessions:       cfg.Sessions,
		backend:        cfg.Backend,
		store:          cfg.Store,
		notifier:       cfg.Notifier,
		metrics:        cfg.Metrics,
		capture:        cfg.Capture,
		speaker:        cfg.Speaker,
		totalQuestions: cfg.TotalQuestions,
		turnTimeout:    cfg.TurnTimeout,
		bus:            newEventBus(),
	}
	c.sessions.SetExpireHook(func(s *session.Session) {
		c.sessionGauge(-1)
		c.event("expired")
		c.bus.Publish(s.ID, protocol.SessionEnded{
			Type:      protocol.TypeSessionEnded,
			SessionID: s.ID,
			Reason:    "inactivity",
		})
	})
	return c
}

// Subscribe attaches a consumer to the session's event stream.
func (c *Coordinator) Subscribe(sessionID string) (<-chan any, func()) {
	return c.bus.Subscribe(sessionID)
}

// Open starts a session for the user, resuming the stored backend
// conversation when one is open. The bool reports whether it resumed.
func (c *Coordinator) Open(ctx context.Context, userID string) (*session.Session, bool, error) {
	userID = strings.TrimSpace(userID)

	if existing, ok := c.sessions.FindByUser(userID); ok {
		return existing, true, nil
	}

	if userID != "" {
		convID, err := c.store.LoadConversationID(ctx, userID)
		if err != nil {
			log.Printf("load stored conversation for %s: %v", userID, err)
		}
		if convID != "" {
			s, err := c.resume(ctx, userID, convID)
			if err == nil {
				return s, true, nil
			}
			if gateway.StatusOf(err) != http.StatusNotFound {
				c.notice("", noticeResumeFetchFailed())
				return nil, false, err
			}
			// The backend no longer knows the conversation. Forget it
			// and start fresh.
			_ = c.store.ClearConversationID(ctx, userID)
		}
	}

	started, err := c.backend.Start(ctx)
	if err != nil {
		c.gatewayError("start")
		c.notice("", noticeStartFailed())
		return nil, false, err
	}

	s := c.sessions.Create(userID, started.ConversationID, c.totalQuestions)
	if greeting := strings.TrimSpace(started.ChatbotResponse); greeting != "" {
		_ = c.sessions.Update(s.ID, func(live *session.Session) {
			live.Transcript.Append(transcript.NewBotMessage(greeting, transcript.TypeWelcome))
		})
		s, _ = c.sessions.Get(s.ID)
	}
	if userID != "" {
		if err := c.store.SaveConversationID(ctx, userID, started.ConversationID); err != nil {
			log.Printf("persist conversation id for %s: %v", userID, err)
		}
	}
	c.sessionGauge(1)
	c.event("started")
	return s, false, nil
}

func (c *Coordinator) resume(ctx context.Context, userID, convID string) (*session.Session, error) {
	history, err := c.backend.History(ctx, convID)
	if err != nil {
		c.gatewayError("history")
		return nil, err
	}

	tr, phase, remaining := transcript.Rebuild(history, c.totalQuestions)
	s := c.sessions.Create(userID, convID, remaining)
	_ = c.sessions.Update(s.ID, func(live *session.Session) {
		live.Transcript = tr
		live.MessageType = phase
	})
	s, _ = c.sessions.Get(s.ID)

	c.sessionGauge(1)
	c.event("resumed")
	c.notice(s.ID, noticeResumed())
	return s, nil
}

// Get returns a snapshot of the session.
func (c *Coordinator) Get(sessionID string) (*session.Session, error) {
	return c.sessions.Get(sessionID)
}

// SubmitTurn sends one user answer through the backend and applies the
// reply to the session. Only unknown sessions produce an error; every
// other failure is encoded in the TurnResult.
func (c *Coordinator) SubmitTurn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if masked, changed := policy.Redact(text); changed {
		text = masked
		c.mark("redacted")
	}
	startedAt := time.Now()

	if err := c.sessions.BeginTurn(sessionID); err != nil {
		switch err {
		case session.ErrTurnInFlight:
			c.turnOutcome(OutcomeRejected)
			return TurnResult{Outcome: OutcomeRejected, Reason: "turn_in_flight"}, nil
		case session.ErrEnded:
			c.turnOutcome(OutcomeEnded)
			return TurnResult{Outcome: OutcomeEnded, Reason: "session_ended", Ended: true}, nil
		default:
			return TurnResult{}, err
		}
	}
	defer c.sessions.EndTurn(sessionID)

	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	// Only the opening exchange may carry an empty message; it prompts
	// the backend for its greeting.
	if text == "" && s.MessageType != transcript.TypeWelcome {
		c.turnOutcome(OutcomeRejected)
		return TurnResult{
			Outcome:        OutcomeRejected,
			Reason:         "empty_message",
			MessageType:    s.MessageType,
			TurnsRemaining: s.TurnsRemaining,
		}, nil
	}

	// Budget spent: wrap up instead of asking the backend for more. The
	// final answer still lands in the transcript first.
	if s.TurnsRemaining <= 0 && s.MessageType != transcript.TypeWelcome {
		if text != "" && !s.Completed {
			_ = c.sessions.Update(sessionID, func(live *session.Session) {
				live.Transcript.Append(transcript.NewUserMessage(text))
				live.InputDraft = ""
			})
		}
		return c.finish(s), nil
	}

	// The wire history excludes the message being sent.
	history := s.Transcript.Wire()
	var userMsg *transcript.Message
	if text != "" {
		m := transcript.NewUserMessage(text)
		userMsg = &m
		if err := c.sessions.Update(sessionID, func(live *session.Session) {
			live.Transcript.Append(m)
			live.InputDraft = ""
		}); err != nil {
			return TurnResult{}, err
		}
	}

	c.bus.Publish(sessionID, protocol.Typing{Type: protocol.TypeTyping, SessionID: sessionID, Active: true})
	defer c.bus.Publish(sessionID, protocol.Typing{Type: protocol.TypeTyping, SessionID: sessionID, Active: false})

	callCtx, cancel := context.WithTimeout(ctx, c.turnTimeout)
	defer cancel()

	replyStart := time.Now()
	resp, err := c.backend.PostMessage(callCtx, gateway.MessageRequest{
		Message:        text,
		ConversationID: s.ConversationID,
		MessageType:    s.MessageType,
		ChatHistory:    history,
		QuestionSet:    s.QuestionSet,
	})
	if err != nil {
		c.gatewayError("message")
		if userMsg != nil {
			_ = c.sessions.Update(sessionID, func(live *session.Session) {
				if live.Transcript.RollbackLastUser() {
					live.InputDraft = text
				}
			})
			c.mark("rollback")
		}
		c.notice(sessionID, noticeSendFailed())
		c.turnOutcome(OutcomeFailed)
		return TurnResult{
			Outcome:        OutcomeFailed,
			Reason:         "backend_unreachable",
			MessageType:    s.MessageType,
			TurnsRemaining: s.TurnsRemaining,
		}, nil
	}
	c.stage(observability.StageBackendReply, time.Since(replyStart))

	botMsg := transcript.NewBotMessage(resp.ChatbotResponse, resp.MessageType)
	var after *session.Session
	_ = c.sessions.Update(sessionID, func(live *session.Session) {
		live.Transcript.Append(botMsg)
		live.MessageType = resp.MessageType
		if len(resp.QuestionSet) > 0 {
			live.QuestionSet = resp.QuestionSet
		}
		if resp.MessageType == transcript.TypeNormalQuestion {
			live.TurnsRemaining--
		}
		snapshot := *live
		after = &snapshot
	})
	if after == nil {
		return TurnResult{}, session.ErrNotFound
	}

	c.bus.Publish(sessionID, protocol.BotMessage{
		Type:      protocol.TypeBotMessage,
		SessionID: sessionID,
		Message:   botMsg,
	})
	c.turnLatency(time.Since(startedAt))

	// The conversation is over when the backend hands back insights or
	// when this reply consumed the last question of the budget.
	if resp.MessageType == transcript.TypeInsights || after.TurnsRemaining <= 0 {
		res := c.finish(after)
		res.Reply = &botMsg
		return res, nil
	}

	c.turnOutcome(OutcomeOK)
	return TurnResult{
		Outcome:        OutcomeOK,
		Reply:          &botMsg,
		MessageType:    after.MessageType,
		TurnsRemaining: after.TurnsRemaining,
	}, nil
}

// finish marks the conversation complete and answers immediately; the
// wrap-up itself (insights, employee report, forgetting the stored
// conversation) runs in the background. CompleteOnce keeps the wrap-up
// to a single run no matter how many submissions race here.
func (c *Coordinator) finish(s *session.Session) TurnResult {
	result := TurnResult{
		Outcome:        OutcomeEnded,
		MessageType:    transcript.TypeInsights,
		TurnsRemaining: 0,
		Ended:          true,
	}

	if !c.sessions.CompleteOnce(s.ID) {
		result.Reason = "already_completed"
		return result
	}

	go c.wrapUp(s.ID, s.UserID, s.ConversationID)
	return result
}

// wrapUp is detached from the submitting request; failures surface as
// notices rather than errors.
func (c *Coordinator) wrapUp(sessionID, userID, conversationID string) {
	callCtx, cancel := context.WithTimeout(context.Background(), c.turnTimeout)
	defer cancel()

	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return
	}

	// The insights message type only appears as the last message when
	// the backend already produced it as its reply.
	last, _ := s.Transcript.Last()
	if last.Type != transcript.TypeInsights {
		insightsStart := time.Now()
		insights, err := c.backend.Insights(callCtx, conversationID)
		if err != nil {
			c.gatewayError("insights")
			c.notice(sessionID, noticeInsightsFailed())
		} else {
			c.stage(observability.StageInsights, time.Since(insightsStart))
			closing := transcript.NewBotMessage(closingMessage, transcript.TypeInsights)
			insightsMsg := transcript.NewBotMessage(insights, transcript.TypeInsights)
			_ = c.sessions.Update(sessionID, func(live *session.Session) {
				live.Transcript.Append(closing)
				live.Transcript.Append(insightsMsg)
				live.MessageType = transcript.TypeInsights
			})
			for _, m := range []transcript.Message{closing, insightsMsg} {
				c.bus.Publish(sessionID, protocol.BotMessage{
					Type:      protocol.TypeBotMessage,
					SessionID: sessionID,
					Message:   m,
				})
			}
		}
	}

	if err := c.backend.GenerateReport(callCtx, conversationID); err != nil {
		c.gatewayError("report")
		c.notice(sessionID, noticeReportFailed())
	}

	if userID != "" {
		if err := c.store.ClearConversationID(context.Background(), userID); err != nil {
			log.Printf("clear conversation id for %s: %v", userID, err)
		}
	}

	if _, err := c.sessions.End(sessionID); err == nil {
		c.sessionGauge(-1)
	}
	c.event("completed")
	c.turnOutcome(OutcomeEnded)
	c.bus.Publish(sessionID, protocol.SessionEnded{
		Type:      protocol.TypeSessionEnded,
		SessionID: sessionID,
		Reason:    "completed",
	})
}

// End closes the session without wrapping up the conversation. The stored
// conversation id survives so the employee can resume later.
func (c *Coordinator) End(sessionID string) (*session.Session, error) {
	s, err := c.sessions.End(sessionID)
	if err != nil {
		return nil, err
	}
	c.sessionGauge(-1)
	c.event("ended")
	if c.capture != nil {
		c.capture.Release(sessionID)
	}
	c.bus.Publish(sessionID, protocol.SessionEnded{
		Type:      protocol.TypeSessionEnded,
		SessionID: sessionID,
		Reason:    "client",
	})
	return s, nil
}

// SaveDraft keeps unsent input so a reconnecting client gets it back.
func (c *Coordinator) SaveDraft(sessionID, draft string) error {
	return c.sessions.Update(sessionID, func(live *session.Session) {
		live.InputDraft = draft
	})
}

func (c *Coordinator) notice(sessionID string, n notify.Notice) {
	c.notifier.Notify(n)
	if c.metrics != nil {
		c.metrics.Notices.WithLabelValues(n.ID).Inc()
	}
	if sessionID != "" {
		c.bus.Publish(sessionID, protocol.Notice{
			Type:        protocol.TypeNotice,
			SessionID:   sessionID,
			Kind:        string(n.Kind),
			Title:       n.Title,
			Description: n.Description,
			NoticeID:    n.ID,
		})
	}
}

func (c *Coordinator) sessionGauge(delta float64) {
	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(delta)
	}
}

func (c *Coordinator) event(name string) {
	if c.metrics != nil {
		c.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}

func (c *Coordinator) turnOutcome(o Outcome) {
	if c.metrics != nil {
		c.metrics.TurnOutcomes.WithLabelValues(string(o)).Inc()
	}
}

func (c *Coordinator) gatewayError(op string) {
	if c.metrics != nil {
		c.metrics.GatewayErrors.WithLabelValues(op).Inc()
	}
}

func (c *Coordinator) turnLatency(d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveTurnLatency(d)
	}
}

func (c *Coordinator) stage(name string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveStage(name, d)
	}
}

func (c *Coordinator) mark(name string) {
	if c.metrics != nil {
		c.metrics.MarkIndicator(name)
	}
}
