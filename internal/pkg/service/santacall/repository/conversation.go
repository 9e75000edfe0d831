package repository

import (
	svcErrors "github.com/santacall/santacall/internal/pkg/service/common/errors"
	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const conversationsTable = "conversations"

// CreateConversation stores a new conversation, only one conversation per order is allowed.
func (r *Repository) CreateConversation(conv model.Conversation) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, found := r.conversations[conv.ConversationID]; found {
		return svcErrors.NewResourceAlreadyExistsError("conversation", conv.ConversationID, conversationsTable)
	}
	if existing, found := r.convOfOrder[conv.OrderID]; found {
		return svcErrors.NewConflictError(
			"conversationExists",
			errors.Errorf(`order "%s" already has the conversation "%s"`, conv.OrderID, existing),
		)
	}

	r.conversations[conv.ConversationID] = conv
	r.convOfOrder[conv.OrderID] = conv.ConversationID
	r.indexConversation(conv)
	return nil
}

func (r *Repository) Conversation(conversationID string) (model.Conversation, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	conv, found := r.conversations[conversationID]
	if !found {
		return model.Conversation{}, svcErrors.NewResourceNotFoundError("conversation", conversationID, conversationsTable)
	}
	return conv, nil
}

func (r *Repository) ConversationByHandle(handle string) (model.Conversation, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	conv, found := r.conversations[r.convByHandle[handle]]
	if !found {
		return model.Conversation{}, svcErrors.NewResourceNotFoundError("callHandle", handle, conversationsTable)
	}
	return conv, nil
}

// ConversationOf returns the conversation of the order, if any.
func (r *Repository) ConversationOf(orderID string) (model.Conversation, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	conv, found := r.conversations[r.convOfOrder[orderID]]
	return conv, found
}

func (r *Repository) ListConversations(filter func(model.Conversation) bool) []model.Conversation {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var out []model.Conversation
	for _, conv := range r.conversations {
		if filter == nil || filter(conv) {
			out = append(out, conv)
		}
	}
	sortByCreated(out, func(c model.Conversation) (int64, string) { return c.CreatedAt.UnixNano(), c.ConversationID })
	return out
}

func (r *Repository) UpdateConversation(conversationID string, update func(model.Conversation) (model.Conversation, error)) (model.Conversation, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	conv, found := r.conversations[conversationID]
	if !found {
		return model.Conversation{}, svcErrors.NewResourceNotFoundError("conversation", conversationID, conversationsTable)
	}

	updated, err := update(conv)
	if err != nil {
		return model.Conversation{}, err
	}
	if updated.ConversationID != conv.ConversationID || updated.OrderID != conv.OrderID {
		return model.Conversation{}, errors.Errorf(`conversation "%s" key cannot be modified`, conversationID)
	}

	r.conversations[conversationID] = updated
	r.indexConversation(updated)
	return updated, nil
}

func (r *Repository) indexConversation(conv model.Conversation) {
	if conv.CallHandle != "" {
		r.convByHandle[conv.CallHandle] = conv.ConversationID
	}
}
