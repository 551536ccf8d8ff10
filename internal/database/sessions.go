package database

import (
	"database/sql"
	"fmt"
	"time"

	"policypal/internal/models"
)

// Session is the persisted state of one chat session
type Session struct {
	ID             string
	AssistantID    string
	ConversationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GetOrCreateSession loads a session row, creating it on first use
func (db *DB) GetOrCreateSession(id string) (*Session, error) {
	session := &Session{ID: id}
	err := db.QueryRow(`
		SELECT assistant_id, conversation_id, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&session.AssistantID, &session.ConversationID, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		now := time.Now()
		session.CreatedAt = now
		session.UpdatedAt = now
		_, err = db.Exec(`
			INSERT INTO sessions (id, assistant_id, conversation_id, created_at, updated_at)
			VALUES (?, '', '', ?, ?)
		`, id, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return session, nil
}

// UpdateSessionAssistant records the assistant bound to a session
func (db *DB) UpdateSessionAssistant(sessionID, assistantID string) error {
	_, err := db.Exec(`
		UPDATE sessions SET assistant_id = ?, updated_at = ? WHERE id = ?
	`, assistantID, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session assistant: %w", err)
	}
	return nil
}

// UpdateSessionConversation records the conversation continuation handle
func (db *DB) UpdateSessionConversation(sessionID, conversationID string) error {
	_, err := db.Exec(`
		UPDATE sessions SET conversation_id = ?, updated_at = ? WHERE id = ?
	`, conversationID, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session conversation: %w", err)
	}
	return nil
}

// AppendMessage persists a chat message at the end of the session transcript
func (db *DB) AppendMessage(sessionID string, msg *models.Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, session_id, role, content, policy_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, sessionID, msg.Role, msg.Content, msg.AttachedPolicyID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns the session transcript in insertion order
func (db *DB) ListMessages(sessionID string) ([]models.Message, error) {
	rows, err := db.Query(`
		SELECT id, role, content, policy_id, created_at
		FROM messages WHERE session_id = ? ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.AttachedPolicyID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// InsertPolicy persists an extracted policy record
func (db *DB) InsertPolicy(sessionID string, rec *models.PolicyRecord) error {
	_, err := db.Exec(`
		INSERT INTO policies (id, session_id, name, number, holder, insurer, status, expiry, type, summary, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, sessionID, rec.Name, rec.Number, rec.Holder, rec.Insurer,
		string(rec.Status), rec.Expiry, string(rec.Type), rec.Summary, rec.Content, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert policy: %w", err)
	}
	return nil
}

// ListPolicies returns the session's policy records in insertion order
func (db *DB) ListPolicies(sessionID string) ([]models.PolicyRecord, error) {
	rows, err := db.Query(`
		SELECT id, name, number, holder, insurer, status, expiry, type, summary, content, created_at
		FROM policies WHERE session_id = ? ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var records []models.PolicyRecord
	for rows.Next() {
		var rec models.PolicyRecord
		var status, policyType string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Number, &rec.Holder, &rec.Insurer,
			&status, &rec.Expiry, &policyType, &rec.Summary, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		rec.Status = models.PolicyStatus(status)
		rec.Type = models.PolicyType(policyType)
		rec.Icon = models.IconForType(rec.Type)
		rec.Color = models.ColorForStatus(rec.Status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
