package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// =============================================================================
// CONVERSATION JOURNAL
// =============================================================================

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// RecordMessage journals one message. Re-recording the same (session, seq)
// is ignored so replays are idempotent.
func (s *LocalStore) RecordMessage(sessionID string, seq int, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := msg.GroundingLinks
	if links == nil {
		links = []types.GroundingLink{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("encode grounding links: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO messages (session_id, seq, role, kind, content, media_url, grounding_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, seq, string(msg.Role), string(msg.Kind), msg.Content, msg.MediaURL, string(linksJSON), formatTime(msg.Timestamp),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record message %s#%d: %v", sessionID, seq, err)
		return err
	}
	return nil
}

// LoadMessages returns a session's messages in sequence order.
func (s *LocalStore) LoadMessages(sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT role, kind, content, media_url, grounding_json, created_at
		 FROM messages WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var role, kind, content, mediaURL, linksJSON, created string
		if err := rows.Scan(&role, &kind, &content, &mediaURL, &linksJSON, &created); err != nil {
			return nil, err
		}
		msg := types.Message{
			Role:      types.Role(role),
			Kind:      types.MediaKind(kind),
			Content:   content,
			MediaURL:  mediaURL,
			Timestamp: parseTime(created),
		}
		var links []types.GroundingLink
		if err := json.Unmarshal([]byte(linksJSON), &links); err == nil && len(links) > 0 {
			msg.GroundingLinks = links
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// LatestSession returns the session with the most recent message, or "".
func (s *LocalStore) LatestSession() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRow(`SELECT session_id FROM messages ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}
