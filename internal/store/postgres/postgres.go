// Package postgres implements the stores on top of a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"social-backend/internal/models"
	"social-backend/internal/store"
)

const uniqueViolation = "23505"

const conversationColumns = `id, initiator_id, recipient_id, last_message_text, last_message_sender,
	gated, awaiting_first_contact, pending_first_message, created_at, updated_at`

type ConversationStore struct {
	pool *pgxpool.Pool
}

func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

var _ store.ConversationStore = (*ConversationStore)(nil)

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var (
		conv                models.Conversation
		initiator, receiver string
		lmText, lmSender    *string
	)
	err := row.Scan(&conv.ID, &initiator, &receiver, &lmText, &lmSender,
		&conv.Gated, &conv.AwaitingFirstContact, &conv.PendingFirstMessage, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	conv.Participants = []string{initiator, receiver}
	if lmText != nil && lmSender != nil {
		conv.LastMessage = &models.LastMessage{Text: *lmText, SenderID: *lmSender}
	}
	return &conv, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return errors.Wrap(err, op)
}

func (s *ConversationStore) FindByParticipants(ctx context.Context, a, b string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE pair_key = $1`
	conv, err := scanConversation(s.pool.QueryRow(ctx, query, models.PairKey(a, b)))
	if err != nil {
		return nil, notFound(err, "find conversation by participants")
	}
	return conv, nil
}

func (s *ConversationStore) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	conv, err := scanConversation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "find conversation")
	}
	return conv, nil
}

func (s *ConversationStore) ListByParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE initiator_id = $1 OR recipient_id = $1
		ORDER BY updated_at DESC`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()

	convs := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		convs = append(convs, *conv)
	}
	return convs, errors.Wrap(rows.Err(), "list conversations")
}

func (s *ConversationStore) Insert(ctx context.Context, conv *models.Conversation) error {
	if len(conv.Participants) != 2 {
		return errors.New("insert conversation: exactly two participants required")
	}
	var lmText, lmSender *string
	if conv.LastMessage != nil {
		lmText, lmSender = &conv.LastMessage.Text, &conv.LastMessage.SenderID
	}
	query := `INSERT INTO conversations (id, initiator_id, recipient_id, pair_key, last_message_text,
		last_message_sender, gated, awaiting_first_contact, pending_first_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.pool.Exec(ctx, query, conv.ID, conv.Participants[0], conv.Participants[1], conv.PairKey(),
		lmText, lmSender, conv.Gated, conv.AwaitingFirstContact, conv.PendingFirstMessage,
		conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrConflict
		}
		return errors.Wrap(err, "insert conversation")
	}
	return nil
}

func (s *ConversationStore) Update(ctx context.Context, id string, upd store.ConversationUpdate) (*models.Conversation, error) {
	sets := []string{"updated_at = NOW()"}
	var args []interface{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.SetLastMessage {
		if upd.LastMessage == nil {
			sets = append(sets, "last_message_text = NULL", "last_message_sender = NULL")
		} else {
			set("last_message_text", upd.LastMessage.Text)
			set("last_message_sender", upd.LastMessage.SenderID)
		}
	}
	if upd.Gated != nil {
		set("gated", *upd.Gated)
	}
	if upd.AwaitingFirstContact != nil {
		set("awaiting_first_contact", *upd.AwaitingFirstContact)
	}
	if upd.PendingFirstMessage != nil {
		set("pending_first_message", *upd.PendingFirstMessage)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE conversations SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), conversationColumns)

	conv, err := scanConversation(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "update conversation")
	}
	return conv, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete conversation")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

var _ store.MessageStore = (*MessageStore)(nil)

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text, &msg.CreatedAt); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) Insert(ctx context.Context, msg *models.Message) error {
	query := `INSERT INTO messages (id, conversation_id, sender_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.CreatedAt); err != nil {
		return errors.Wrap(err, "insert message")
	}
	return nil
}

func (s *MessageStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, text, created_at FROM messages WHERE id = $1`
	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "find message")
	}
	return msg, nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, text, created_at FROM messages
		WHERE conversation_id = $1 ORDER BY created_at ASC, seq ASC`
	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		messages = append(messages, *msg)
	}
	return messages, errors.Wrap(rows.Err(), "list messages")
}

func (s *MessageStore) Latest(ctx context.Context, conversationID string) (*models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, text, created_at FROM messages
		WHERE conversation_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`
	msg, err := scanMessage(s.pool.QueryRow(ctx, query, conversationID))
	if err != nil {
		return nil, notFound(err, "latest message")
	}
	return msg, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete message")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, errors.Wrap(err, "delete conversation messages")
	}
	return tag.RowsAffected(), nil
}

// New returns the postgres stores; the pool stays owned by the caller.
func New(pool *pgxpool.Pool) store.Stores {
	return store.Stores{
		Conversations: NewConversationStore(pool),
		Messages:      NewMessageStore(pool),
	}
}
