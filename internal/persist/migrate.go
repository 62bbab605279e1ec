package persist

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/state"
)

// ErrMalformedBlob is returned when a blob is not a JSON object.
var ErrMalformedBlob = errors.New("malformed state blob")

// Migrate parses a stored state blob of any known schema version and
// returns it in the current shape. Records that cannot be salvaged are
// dropped and reported as warnings. Migrate is idempotent: migrating the
// serialized output again yields the same state.
func Migrate(raw []byte) (state.Persisted, []string, error) {
	if !gjson.ValidBytes(raw) {
		return state.Persisted{}, nil, fmt.Errorf("%w: invalid JSON", ErrMalformedBlob)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return state.Persisted{}, nil, fmt.Errorf("%w: expected object, got %s", ErrMalformedBlob, root.Type)
	}

	m := &migration{}
	out := state.Persisted{
		Conversations:       m.conversations(root.Get("conversations")),
		TroubleshootingMode: root.Get("troubleshootingMode").Bool(),
	}

	if cur := root.Get("currentConversationId"); cur.Type == gjson.String {
		switch {
		case containsConversation(out.Conversations, cur.Str):
			id := cur.Str
			out.CurrentConversationID = &id
		case len(out.Conversations) > 0:
			id := out.Conversations[0].ID
			out.CurrentConversationID = &id
			m.warn("current conversation %q not found, using %q", cur.Str, id)
		default:
			m.warn("current conversation %q not found", cur.Str)
		}
	}

	return out, m.warnings, nil
}

type migration struct {
	warnings []string
}

func (m *migration) warn(format string, args ...any) {
	m.warnings = append(m.warnings, fmt.Sprintf(format, args...))
}

func (m *migration) conversations(list gjson.Result) []model.Conversation {
	out := []model.Conversation{}
	if !list.Exists() || list.Type == gjson.Null {
		return out
	}
	if !list.IsArray() {
		m.warn("conversations is not an array, ignoring")
		return out
	}

	seen := make(map[string]bool)
	for i, rec := range list.Array() {
		if !rec.IsObject() {
			m.warn("conversation %d: not an object, dropped", i)
			continue
		}

		id := rec.Get("id").String()
		if id == "" {
			id = model.NewID()
			m.warn("conversation %d: missing id, assigned %s", i, id)
		}
		if seen[id] {
			m.warn("conversation %s: duplicate id, dropped", id)
			continue
		}
		seen[id] = true

		conv := model.Conversation{
			ID:                      id,
			Title:                   model.DefaultTitle,
			Renamed:                 rec.Get("renamed").Bool(),
			Messages:                m.messages(id, rec.Get("messages")),
			TotalTokens:             int(rec.Get("totalTokens").Int()),
			CachedContentTokenCount: int(rec.Get("cachedContentTokenCount").Int()),
		}
		if title := rec.Get("title"); title.Type == gjson.String && title.Str != "" {
			conv.Title = title.Str
		}
		out = append(out, conv)
	}
	return out
}

func (m *migration) messages(convID string, list gjson.Result) []model.Message {
	out := []model.Message{}
	if !list.IsArray() {
		if list.Exists() && list.Type != gjson.Null {
			m.warn("conversation %s: messages is not an array, ignoring", convID)
		}
		return out
	}

	var (
		seen       = make(map[string]bool)
		needsPair  []bool
		anyPairing bool
	)
	for i, rec := range list.Array() {
		if !rec.IsObject() {
			m.warn("conversation %s: message %d: not an object, dropped", convID, i)
			continue
		}

		var (
			msg      model.Message
			contents gjson.Result
			pair     bool
		)
		if c := rec.Get("content"); c.IsObject() {
			// Wrapped message. Without a responseTo key the record predates
			// explicit pairing and is paired by position below.
			contents = c
			msg.ID = rec.Get("id").String()
			msg.IsErrorAssociated = rec.Get("isErrorAssociated").Bool()
			if ref := rec.Get("responseTo"); ref.Exists() {
				if ref.Type == gjson.String {
					s := ref.Str
					msg.ResponseTo = &s
				}
			} else {
				pair = true
			}
		} else if rec.Get("role").Exists() || rec.Get("parts").Exists() {
			// Bare content object.
			contents = rec
		} else {
			m.warn("conversation %s: message %d: unrecognized shape, dropped", convID, i)
			continue
		}

		content, ok := m.content(convID, i, contents)
		if !ok {
			continue
		}
		msg.Content = content

		switch {
		case msg.ID == "":
			msg.ID = model.NewID()
		case seen[msg.ID]:
			old := msg.ID
			msg.ID = model.NewID()
			m.warn("conversation %s: duplicate message id %s, reissued as %s", convID, old, msg.ID)
		}
		seen[msg.ID] = true

		if msg.Role() != model.RoleModel {
			msg.ResponseTo = nil
			pair = false
		}
		anyPairing = anyPairing || pair
		needsPair = append(needsPair, pair)
		out = append(out, msg)
	}

	if anyPairing {
		pairByPosition(out, needsPair)
	}
	return out
}

// pairByPosition links model messages to the user message directly before
// them, walking the list in user/model steps.
func pairByPosition(msgs []model.Message, needsPair []bool) {
	for i := 0; i < len(msgs); {
		if msgs[i].Role() == model.RoleUser && i+1 < len(msgs) && msgs[i+1].Role() == model.RoleModel {
			if needsPair[i+1] {
				id := msgs[i].ID
				msgs[i+1].ResponseTo = &id
			}
			i += 2
			continue
		}
		i++
	}
}

func (m *migration) content(convID string, idx int, c gjson.Result) (model.Content, bool) {
	role := model.Role(c.Get("role").String())
	if !role.Valid() {
		m.warn("conversation %s: message %d: unknown role %q, dropped", convID, idx, role)
		return model.Content{}, false
	}

	parts := []model.Part{}
	for j, p := range c.Get("parts").Array() {
		part, ok := m.part(p)
		if !ok {
			m.warn("conversation %s: message %d: part %d unusable, dropped", convID, idx, j)
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		m.warn("conversation %s: message %d: no usable parts, dropped", convID, idx)
		return model.Content{}, false
	}
	return model.Content{Role: role, Parts: parts}, true
}

func (m *migration) part(p gjson.Result) (model.Part, bool) {
	if !p.IsObject() {
		return model.Part{}, false
	}
	if inline := p.Get("inlineData"); inline.IsObject() {
		mime := inline.Get("mimeType").String()
		data, err := base64.StdEncoding.DecodeString(inline.Get("data").String())
		if mime == "" || err != nil {
			return model.Part{}, false
		}
		return model.InlinePart(mime, data), true
	}
	if text := p.Get("text"); text.Type == gjson.String {
		return model.TextPart(text.Str), true
	}
	return model.Part{}, false
}

func containsConversation(convs []model.Conversation, id string) bool {
	for _, c := range convs {
		if c.ID == id {
			return true
		}
	}
	return false
}
