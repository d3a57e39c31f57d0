package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"standup-bot/internal/domain"
)

const channelTypeIM = "im"

// Acker acknowledges socket mode envelopes. *socketmode.Client satisfies it.
type Acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Handler turns socket mode events into inbound answers.
type Handler struct {
	dispatcher *Dispatcher
	acker      Acker
	selfID     string
	log        zerolog.Logger
}

// NewHandler builds a Handler. selfID is the bot's own user id; its messages
// are never treated as answers.
func NewHandler(d *Dispatcher, acker Acker, selfID string, log zerolog.Logger) (*Handler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	if acker == nil {
		return nil, errors.New("handler: acker must not be nil")
	}
	return &Handler{dispatcher: d, acker: acker, selfID: selfID, log: log}, nil
}

// Serve consumes events until ctx is done or the channel is closed.
func (h *Handler) Serve(ctx context.Context, events <-chan socketmode.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			h.HandleEvent(ctx, evt)
		}
	}
}

func (h *Handler) HandleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		h.log.Info().Msg("connecting to slack")
	case socketmode.EventTypeConnected:
		h.log.Info().Msg("connected to slack")
	case socketmode.EventTypeConnectionError:
		h.log.Warn().Interface("data", evt.Data).Msg("slack connection error")
	case socketmode.EventTypeDisconnect:
		h.log.Warn().Msg("slack requested disconnect")
	case socketmode.EventTypeEventsAPI:
		h.ack(evt)
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			h.log.Warn().Msg("events api payload has unexpected type")
			return
		}
		if apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok {
			return
		}
		if in, ok := h.inbound(msg); ok {
			h.dispatcher.Dispatch(ctx, in)
		}
	default:
		h.ack(evt)
	}
}

func (h *Handler) ack(evt socketmode.Event) {
	if evt.Request != nil {
		h.acker.Ack(*evt.Request)
	}
}

// inbound keeps plain direct messages written by a human.
func (h *Handler) inbound(msg *slackevents.MessageEvent) (domain.Inbound, bool) {
	switch {
	case msg.ChannelType != channelTypeIM:
		return domain.Inbound{}, false
	case msg.User == "" || msg.User == h.selfID:
		return domain.Inbound{}, false
	case msg.BotID != "" || msg.SubType != "":
		return domain.Inbound{}, false
	}
	return domain.Inbound{UserID: msg.User, Text: msg.Text}, true
}
