package store

import "database/sql"

// GroupExists reports whether a chat group with the given id exists.
func (s *Store) GroupExists(groupID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chat_group WHERE group_id = ?`, groupID).Scan(&n)
	return n > 0, err
}

// GroupMemberExists reports whether the agent is a member of the group.
func (s *Store) GroupMemberExists(groupID, agentID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM group_members WHERE group_id = ? AND agent_id = ?
	`, groupID, agentID).Scan(&n)
	return n > 0, err
}

// GroupMemberIDs returns the group's members, excluding the given agent.
func (s *Store) GroupMemberIDs(groupID, excludeAgentID int64) ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT agent_id FROM group_members WHERE group_id = ? AND agent_id != ?
	`, groupID, excludeAgentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllGroups returns the full group directory keyed by group id.
func (s *Store) AllGroups() (map[int64]string, error) {
	rows, err := s.db.Query(`SELECT group_id, name FROM chat_group`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		groups[id] = name
	}
	return groups, rows.Err()
}

// JoinedGroupIDs returns the ids of every group the agent belongs to.
func (s *Store) JoinedGroupIDs(agentID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT group_id FROM group_members WHERE agent_id = ?`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupMessages returns a group's messages in send order.
func (s *Store) GroupMessages(groupID int64) ([]*GroupMessage, error) {
	rows, err := s.db.Query(`
		SELECT message_id, group_id, sender_id, content, sent_at
		FROM group_messages WHERE group_id = ? ORDER BY message_id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*GroupMessage
	for rows.Next() {
		var m GroupMessage
		if err := rows.Scan(&m.MessageID, &m.GroupID, &m.SenderID, &m.Content, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// InsertGroup creates a chat group and returns its id.
func InsertGroup(tx *sql.Tx, name, at string) (int64, error) {
	res, err := tx.Exec(`INSERT INTO chat_group (name, created_at) VALUES (?, ?)`, name, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertGroupMember adds the agent to the group.
func InsertGroupMember(tx *sql.Tx, groupID, agentID int64, at string) error {
	_, err := tx.Exec(`
		INSERT INTO group_members (group_id, agent_id, joined_at) VALUES (?, ?, ?)
	`, groupID, agentID, at)
	return err
}

// DeleteGroupMember removes the agent from the group.
func DeleteGroupMember(tx *sql.Tx, groupID, agentID int64) error {
	_, err := tx.Exec(`
		DELETE FROM group_members WHERE group_id = ? AND agent_id = ?
	`, groupID, agentID)
	return err
}

// InsertGroupMessage stores a message and returns its id.
func InsertGroupMessage(tx *sql.Tx, m *GroupMessage) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO group_messages (group_id, sender_id, content, sent_at)
		VALUES (?, ?, ?, ?)
	`, m.GroupID, m.SenderID, m.Content, m.SentAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
