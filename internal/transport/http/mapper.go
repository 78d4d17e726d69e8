package http

import (
	"encoding/json"

	"github.com/pingline/pingline-server/internal/core"
	"github.com/pingline/pingline-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeRegister:
		return &core.Command{Kind: core.CommandRegister}, nil, nil
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.ReceiverID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "receiver_id is required"}, nil
		}
		return &core.Command{
			Kind:       core.CommandSendMessage,
			ReceiverID: msg.ReceiverID,
			Text:       msg.Text,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoster:
		entries := make([]proto.RosterEntry, 0, len(event.Roster))
		for _, e := range event.Roster {
			entries = append(entries, proto.RosterEntry{
				ID:       e.UserID,
				Username: e.Username,
				Online:   e.Online,
			})
		}
		return proto.Outbound{
			Type: proto.OutboundTypeRoster,
			Data: entries,
		}
	case core.EventPresence:
		status := "offline"
		if event.User.Online {
			status = "online"
		}
		return proto.Outbound{
			Type: proto.OutboundTypePresence,
			Data: proto.PresenceData{
				ID:       event.User.UserID,
				Username: event.User.Username,
				Status:   status,
			},
		}
	case core.EventDirectMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeNewMessage,
			Data: proto.MessageData{
				ID:         event.Message.ID,
				SenderID:   event.Message.SenderID,
				ReceiverID: event.Message.ReceiverID,
				Text:       event.Message.Text,
				TS:         event.Message.CreatedAt.Unix(),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
