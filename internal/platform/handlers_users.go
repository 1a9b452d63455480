package platform

import (
	"context"
	"database/sql"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/store"
)

// signUp inserts the user row with user_id = agent_id, so the identity
// space is shared between the channel and the tables.
func (p *Platform) signUp(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	userName, _ := payloadString(payload, "user_name")
	name, _ := payloadString(payload, "name")
	bio, _ := payloadString(payload, "bio")

	now := p.clock.Now()
	trace := &store.TraceRow{
		UserID: userID, CreatedAt: now, Action: action.SignUp,
		Info: map[string]any{"user_name": userName, "name": name, "bio": bio},
	}
	err := p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		return store.InsertUser(tx, &store.User{
			UserID:    userID,
			AgentID:   userID,
			UserName:  userName,
			Name:      name,
			Bio:       bio,
			CreatedAt: now,
		})
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"user_id": userID})
}

func (p *Platform) follow(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	followeeID, ok := payloadInt(payload, "followee_id")
	if !ok {
		return failure("followee_id is required")
	}
	if followeeID == userID {
		return failure(reasonSelfFollow)
	}
	existing, err := p.store.FollowID(userID, followeeID)
	if err != nil {
		return failure(err.Error())
	}
	if existing != 0 {
		return failure(reasonFollowExists)
	}

	now := p.clock.Now()
	var followID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.Follow}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		var err error
		followID, err = store.InsertFollow(tx, userID, followeeID, now)
		if err != nil {
			return err
		}
		if err := store.BumpFollowings(tx, userID, 1); err != nil {
			return err
		}
		if err := store.BumpFollowers(tx, followeeID, 1); err != nil {
			return err
		}
		trace.Info = map[string]any{"follow_id": followID, "followee_id": followeeID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	if p.graph != nil {
		p.graph.AddEdge(userID, followeeID)
	}
	return success(map[string]any{"follow_id": followID})
}

func (p *Platform) unfollow(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	followeeID, ok := payloadInt(payload, "followee_id")
	if !ok {
		return failure("followee_id is required")
	}
	followID, err := p.store.FollowID(userID, followeeID)
	if err != nil {
		return failure(err.Error())
	}
	if followID == 0 {
		return failure(reasonFollowMissing)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.Unfollow,
		Info: map[string]any{"follow_id": followID, "followee_id": followeeID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.DeleteFollow(tx, followID); err != nil {
			return err
		}
		if err := store.BumpFollowings(tx, userID, -1); err != nil {
			return err
		}
		return store.BumpFollowers(tx, followeeID, -1)
	})
	if err != nil {
		return failure(err.Error())
	}
	if p.graph != nil {
		p.graph.RemoveEdge(userID, followeeID)
	}
	return success(map[string]any{"follow_id": followID})
}

func (p *Platform) mute(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	muteeID, ok := payloadInt(payload, "mutee_id")
	if !ok {
		return failure("mutee_id is required")
	}
	existing, err := p.store.MuteID(userID, muteeID)
	if err != nil {
		return failure(err.Error())
	}
	if existing != 0 {
		return failure(reasonMuteExists)
	}

	now := p.clock.Now()
	trace := &store.TraceRow{
		UserID: userID, CreatedAt: now, Action: action.Mute,
		Info: map[string]any{"mutee_id": muteeID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		_, err := store.InsertMute(tx, userID, muteeID, now)
		return err
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"mutee_id": muteeID})
}

func (p *Platform) unmute(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	muteeID, ok := payloadInt(payload, "mutee_id")
	if !ok {
		return failure("mutee_id is required")
	}
	existing, err := p.store.MuteID(userID, muteeID)
	if err != nil {
		return failure(err.Error())
	}
	if existing == 0 {
		return failure(reasonMuteMissing)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.Unmute,
		Info: map[string]any{"mutee_id": muteeID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		return store.DeleteMute(tx, userID, muteeID)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"mutee_id": muteeID})
}

func (p *Platform) searchUser(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	query, ok := payloadString(payload, "query")
	if !ok {
		return failure("query is required")
	}
	users, err := p.store.SearchUsers(query)
	if err != nil {
		return failure(err.Error())
	}
	if len(users) == 0 {
		return failure(reasonNoUserMatches)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.SearchUser,
		Info: map[string]any{"query": query},
	}
	if err := p.store.Mutate(ctx, trace, nil); err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"users": renderUsers(users)})
}
