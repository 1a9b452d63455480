package platform

import (
	"context"
	"database/sql"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/store"
)

// createGroup opens a chat group and enrolls the creator in the same
// transaction.
func (p *Platform) createGroup(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	groupName, ok := payloadString(payload, "group_name")
	if !ok {
		return failure("group_name is required")
	}

	now := p.clock.Now()
	var groupID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.CreateGroup}
	err := p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		var err error
		groupID, err = store.InsertGroup(tx, groupName, now)
		if err != nil {
			return err
		}
		if err := store.InsertGroupMember(tx, groupID, userID, now); err != nil {
			return err
		}
		trace.Info = map[string]any{"group_id": groupID, "group_name": groupName}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"group_id": groupID})
}

func (p *Platform) joinGroup(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	groupID, ok := payloadInt(payload, "group_id")
	if !ok {
		return failure("group_id is required")
	}
	exists, err := p.store.GroupExists(groupID)
	if err != nil {
		return failure(err.Error())
	}
	if !exists {
		return failure(reasonGroupMissing)
	}
	member, err := p.store.GroupMemberExists(groupID, userID)
	if err != nil {
		return failure(err.Error())
	}
	if member {
		return failure(reasonAlreadyMember)
	}

	now := p.clock.Now()
	trace := &store.TraceRow{
		UserID: userID, CreatedAt: now, Action: action.JoinGroup,
		Info: map[string]any{"group_id": groupID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		return store.InsertGroupMember(tx, groupID, userID, now)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"group_id": groupID})
}

func (p *Platform) leaveGroup(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	groupID, ok := payloadInt(payload, "group_id")
	if !ok {
		return failure("group_id is required")
	}
	exists, err := p.store.GroupExists(groupID)
	if err != nil {
		return failure(err.Error())
	}
	if !exists {
		return failure(reasonGroupMissing)
	}
	member, err := p.store.GroupMemberExists(groupID, userID)
	if err != nil {
		return failure(err.Error())
	}
	if !member {
		return failure(reasonNotGroupMember)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.LeaveGroup,
		Info: map[string]any{"group_id": groupID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		return store.DeleteGroupMember(tx, groupID, userID)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"group_id": groupID})
}

func (p *Platform) sendToGroup(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	groupID, ok := payloadInt(payload, "group_id")
	if !ok {
		return failure("group_id is required")
	}
	message, ok := payloadString(payload, "message")
	if !ok {
		return failure("message is required")
	}
	exists, err := p.store.GroupExists(groupID)
	if err != nil {
		return failure(err.Error())
	}
	if !exists {
		return failure(reasonGroupMissing)
	}
	member, err := p.store.GroupMemberExists(groupID, userID)
	if err != nil {
		return failure(err.Error())
	}
	if !member {
		return failure(reasonNotGroupMember)
	}

	now := p.clock.Now()
	var messageID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.SendToGroup}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		var err error
		messageID, err = store.InsertGroupMessage(tx, &store.GroupMessage{
			GroupID:  groupID,
			SenderID: userID,
			Content:  message,
			SentAt:   now,
		})
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"group_id": groupID, "message_id": messageID, "content": message}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	recipients, err := p.store.GroupMemberIDs(groupID, userID)
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"message_id": messageID, "to": recipients})
}

// listenFromGroup is a pure read: the group directory, the sender's
// memberships, and the message log of each joined group. It leaves no
// trace row.
func (p *Platform) listenFromGroup(userID int64) map[string]any {
	allGroups, err := p.store.AllGroups()
	if err != nil {
		return failure(err.Error())
	}
	joined, err := p.store.JoinedGroupIDs(userID)
	if err != nil {
		return failure(err.Error())
	}

	messages := make(map[int64][]map[string]any, len(joined))
	for _, groupID := range joined {
		log, err := p.store.GroupMessages(groupID)
		if err != nil {
			return failure(err.Error())
		}
		rendered := make([]map[string]any, 0, len(log))
		for _, msg := range log {
			rendered = append(rendered, map[string]any{
				"message_id": msg.MessageID,
				"group_id":   msg.GroupID,
				"sender_id":  msg.SenderID,
				"content":    msg.Content,
				"sent_at":    msg.SentAt,
			})
		}
		messages[groupID] = rendered
	}
	return success(map[string]any{
		"all_groups":    allGroups,
		"joined_groups": joined,
		"messages":      messages,
	})
}
