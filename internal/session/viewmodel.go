package session

import (
	"sort"
	"time"

	"github.com/okoro-dev/translingo/internal/models"
)

const (
	defaultTitle = "New chat"
	titleLimit   = 28
)

// viewModel is the in-memory projection of one user's chats, messages,
// attachments and error notifications. It is mutated only by the Coordinator
// under its lock; the presentation layer only ever sees copies.
type viewModel struct {
	activeChatID string
	chats        []models.Chat
	messages     map[string][]*models.Message
	loaded       map[string]bool
	attachments  []*models.Attachment
	errors       []string
}

func newViewModel() *viewModel {
	return &viewModel{
		messages: make(map[string][]*models.Message),
		loaded:   make(map[string]bool),
	}
}

func (v *viewModel) setChats(chats []models.Chat) {
	v.chats = append([]models.Chat(nil), chats...)
	v.resort()
}

func (v *viewModel) addChatFront(ch models.Chat) {
	v.chats = append([]models.Chat{ch}, v.chats...)
	v.messages[ch.ID] = nil
	v.loaded[ch.ID] = true
}

func (v *viewModel) hasChat(id string) bool {
	for i := range v.chats {
		if v.chats[i].ID == id {
			return true
		}
	}
	return false
}

func (v *viewModel) removeChat(id string) {
	for i := range v.chats {
		if v.chats[i].ID == id {
			v.chats = append(v.chats[:i], v.chats[i+1:]...)
			break
		}
	}
	delete(v.messages, id)
	delete(v.loaded, id)
}

// touchChat bumps the chat's update time and, while the title is still the
// default, replaces it with the first message text. Returns the new title or
// "" when the title was already set.
func (v *viewModel) touchChat(id, firstText string) string {
	var newTitle string
	for i := range v.chats {
		if v.chats[i].ID != id {
			continue
		}
		if firstText != "" && v.chats[i].Title == defaultTitle {
			title := firstText
			if r := []rune(title); len(r) > titleLimit {
				title = string(r[:titleLimit])
			}
			v.chats[i].Title = title
			newTitle = title
		}
		v.chats[i].UpdatedAt = time.Now()
		break
	}
	v.resort()
	return newTitle
}

func (v *viewModel) bumpChat(id string) {
	for i := range v.chats {
		if v.chats[i].ID == id {
			v.chats[i].UpdatedAt = time.Now()
			break
		}
	}
	v.resort()
}

// resort keeps the most recently updated chat first.
func (v *viewModel) resort() {
	sort.SliceStable(v.chats, func(i, j int) bool {
		return v.chats[i].UpdatedAt.After(v.chats[j].UpdatedAt)
	})
}

func (v *viewModel) setMessages(chatID string, msgs []models.Message) {
	out := make([]*models.Message, len(msgs))
	for i := range msgs {
		m := msgs[i]
		out[i] = &m
	}
	v.messages[chatID] = out
	v.loaded[chatID] = true
}

func (v *viewModel) appendMessage(chatID string, msg *models.Message) {
	v.messages[chatID] = append(v.messages[chatID], msg)
}

func (v *viewModel) message(chatID, msgID string) *models.Message {
	for _, m := range v.messages[chatID] {
		if m.ID == msgID {
			return m
		}
	}
	return nil
}

func (v *viewModel) setStreamingText(chatID, msgID, text string) {
	if m := v.message(chatID, msgID); m != nil && m.Pending {
		m.TranslatedText = text
	}
}

func (v *viewModel) finalizeSuccess(chatID, msgID, final string, latencyMs int64) {
	if m := v.message(chatID, msgID); m != nil && m.Pending {
		m.TranslatedText = final
		m.Pending = false
		m.LatencyMs = latencyMs
		m.ShowPlayback = true
		m.Error = ""
	}
}

func (v *viewModel) finalizeFailure(chatID, msgID, text, errMsg string) {
	if m := v.message(chatID, msgID); m != nil && m.Pending {
		m.TranslatedText = text
		m.Pending = false
		m.Error = errMsg
	}
}

// Attachments

func (v *viewModel) addAttachment(a *models.Attachment) {
	v.attachments = append(v.attachments, a)
}

func (v *viewModel) attachment(id string) *models.Attachment {
	for _, a := range v.attachments {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (v *viewModel) setAttachmentReady(id string, chars int) {
	if a := v.attachment(id); a != nil {
		a.Status = models.AttachmentReady
		a.Chars = chars
	}
}

func (v *viewModel) setAttachmentError(id, errMsg string) {
	if a := v.attachment(id); a != nil {
		a.Status = models.AttachmentError
		a.Error = errMsg
	}
}

func (v *viewModel) removeAttachment(id string) {
	for i, a := range v.attachments {
		if a.ID == id {
			v.attachments = append(v.attachments[:i], v.attachments[i+1:]...)
			return
		}
	}
}

// Error notifications

func (v *viewModel) pushError(msg string) {
	v.errors = append(v.errors, msg)
}

func (v *viewModel) clearErrors() {
	v.errors = nil
}
