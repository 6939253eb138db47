package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketchat/internal/pkg/randx"

	appdb "marketchat/internal/app/db"
)

// PostgresStore is the PostgreSQL-backed implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an initialized connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUser retrieves a user record by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	u := &UserRecord{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, nickname, avatar_url, role, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&u.ID,
		&u.Nickname,
		&u.AvatarURL,
		&u.Role,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

const conversationColumns = `
	id, member_low, member_high, created_at,
	COALESCE(last_message_id::text, ''), last_message_body, last_message_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	c := &Conversation{}
	err := row.Scan(
		&c.ID,
		&c.MemberLow,
		&c.MemberHi,
		&c.CreatedAt,
		&c.LastMessageID,
		&c.LastMessageBody,
		&c.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreateConversation returns the existing conversation for the unordered pair
// (userA, userB), creating it first if needed. The unique constraint on the canonical
// pair makes concurrent creation collapse onto a single row: a unique violation is
// resolved by re-reading the winner.
func (s *PostgresStore) GetOrCreateConversation(ctx context.Context, userA, userB string) (*Conversation, error) {
	low, high := CanonicalPair(userA, userB)

	existing, err := s.getConversationByPair(ctx, low, high)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, member_low, member_high)
		VALUES ($1, $2, $3)
		RETURNING `+conversationColumns,
		randx.ConversationID(), low, high))

	if err != nil {
		if appdb.IsUniqueViolation(err) {
			return s.getConversationByPair(ctx, low, high)
		}
		return nil, err
	}
	return created, nil
}

func (s *PostgresStore) getConversationByPair(ctx context.Context, low, high string) (*Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE member_low = $1 AND member_high = $2
	`, low, high))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// GetConversation retrieves a conversation by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListConversations returns every conversation the user is a member of, most
// recently active first, with the denormalized latest-message columns included.
func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE member_low = $1 OR member_high = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

// CreateMessage persists a message and updates the conversation's denormalized
// latest-message pointer in the same transaction. The returned record is the
// canonical message clients replace their optimistic entries with.
func (s *PostgresStore) CreateMessage(ctx context.Context, conversationID, senderID, body string) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	m := &Message{}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, sender_id, body, created_at
	`, randx.MessageID(), conversationID, senderID, body).Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.Body,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_id = $2, last_message_body = $3, last_message_at = $4
		WHERE id = $1
	`, m.ConversationID, m.ID, m.Body, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("conversation %s vanished while writing message", conversationID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns the full chronological history of a conversation.
// This ordering is the ground truth the live channel never overrides.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateFriendRequest records a pending friend request. A duplicate pending pair
// surfaces as a unique violation, which callers translate to a business error.
func (s *PostgresStore) CreateFriendRequest(ctx context.Context, requesterID, recipientID string) (*FriendRequest, error) {
	fr := &FriendRequest{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO friend_requests (id, requester_id, recipient_id)
		VALUES ($1, $2, $3)
		RETURNING id, requester_id, recipient_id, status, created_at, accepted_at
	`, randx.FriendRequestID(), requesterID, recipientID).Scan(
		&fr.ID,
		&fr.RequesterID,
		&fr.RecipientID,
		&fr.Status,
		&fr.CreatedAt,
		&fr.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}
	return fr, nil
}

// AcceptFriendRequest flips a pending request to accepted. The recipient filter
// keeps one user from accepting another's request. Returns (nil, nil) when no
// matching pending request exists.
func (s *PostgresStore) AcceptFriendRequest(ctx context.Context, id, recipientID string) (*FriendRequest, error) {
	fr := &FriendRequest{}
	err := s.pool.QueryRow(ctx, `
		UPDATE friend_requests
		SET status = 'accepted', accepted_at = now()
		WHERE id = $1 AND recipient_id = $2 AND status = 'pending'
		RETURNING id, requester_id, recipient_id, status, created_at, accepted_at
	`, id, recipientID).Scan(
		&fr.ID,
		&fr.RequesterID,
		&fr.RecipientID,
		&fr.Status,
		&fr.CreatedAt,
		&fr.AcceptedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fr, nil
}

// CountPendingFriendRequests returns the number of requests waiting on the recipient.
func (s *PostgresStore) CountPendingFriendRequests(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM friend_requests
		WHERE recipient_id = $1 AND status = 'pending'
	`, recipientID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
