package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/frozenspider/chat-history-manager-backend/model"
)

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// envelope tags a polymorphic value with a stable kind string so it can be
// round-tripped through a single TEXT column, the same way the rest of the
// merge engine keeps its sum types closed via an exhaustive switch rather
// than reflection-based marshaling.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeText(els []model.RichTextElement) ([]byte, error) {
	envs := make([]envelope, len(els))
	for i, el := range els {
		data, kind, err := encodeRTE(el)
		if err != nil {
			return nil, fmt.Errorf("encoding text span %d: %w", i, err)
		}
		envs[i] = envelope{Kind: kind, Data: data}
	}
	return json.Marshal(envs)
}

func decodeText(raw []byte) ([]model.RichTextElement, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var envs []envelope
	if err := json.Unmarshal(raw, &envs); err != nil {
		return nil, err
	}
	out := make([]model.RichTextElement, len(envs))
	for i, e := range envs {
		el, err := decodeRTE(e)
		if err != nil {
			return nil, fmt.Errorf("decoding text span %d: %w", i, err)
		}
		out[i] = el
	}
	return out, nil
}

func encodeRTE(el model.RichTextElement) (json.RawMessage, string, error) {
	data, err := json.Marshal(el)
	if err != nil {
		return nil, "", err
	}
	switch el.(type) {
	case model.RTEPlain:
		return data, "plain", nil
	case model.RTEBold:
		return data, "bold", nil
	case model.RTEItalic:
		return data, "italic", nil
	case model.RTEUnderline:
		return data, "underline", nil
	case model.RTEStrikethrough:
		return data, "strikethrough", nil
	case model.RTELink:
		return data, "link", nil
	case model.RTEPrefmtInline:
		return data, "prefmt_inline", nil
	case model.RTEPrefmtBlock:
		return data, "prefmt_block", nil
	default:
		return nil, "", fmt.Errorf("unknown rich text element %T", el)
	}
}

func decodeRTE(e envelope) (model.RichTextElement, error) {
	switch e.Kind {
	case "plain":
		var v model.RTEPlain
		return v, json.Unmarshal(e.Data, &v)
	case "bold":
		var v model.RTEBold
		return v, json.Unmarshal(e.Data, &v)
	case "italic":
		var v model.RTEItalic
		return v, json.Unmarshal(e.Data, &v)
	case "underline":
		var v model.RTEUnderline
		return v, json.Unmarshal(e.Data, &v)
	case "strikethrough":
		var v model.RTEStrikethrough
		return v, json.Unmarshal(e.Data, &v)
	case "link":
		var v model.RTELink
		return v, json.Unmarshal(e.Data, &v)
	case "prefmt_inline":
		var v model.RTEPrefmtInline
		return v, json.Unmarshal(e.Data, &v)
	case "prefmt_block":
		var v model.RTEPrefmtBlock
		return v, json.Unmarshal(e.Data, &v)
	default:
		return nil, fmt.Errorf("unknown rich text kind %q", e.Kind)
	}
}

// typedEnvelope additionally distinguishes Regular from Service before the
// inner content kind, since TypedRegular.Content may legitimately be nil.
type typedEnvelope struct {
	Regular *regularEnvelope `json:"regular,omitempty"`
	Service *envelope        `json:"service,omitempty"`
}

type regularEnvelope struct {
	EditTimeUnix    *int64    `json:"edit_time_unix,omitempty"`
	ForwardFromName *string   `json:"forward_from_name,omitempty"`
	ReplyToSourceID *int64    `json:"reply_to_source_id,omitempty"`
	Content         *envelope `json:"content,omitempty"`
}

func encodeTyped(typed model.MessageTyped) ([]byte, error) {
	switch t := typed.(type) {
	case model.TypedRegular:
		re := &regularEnvelope{ForwardFromName: t.ForwardFromName}
		if t.EditTime != nil {
			unix := t.EditTime.Unix()
			re.EditTimeUnix = &unix
		}
		if t.ReplyToSourceID != nil {
			id := int64(*t.ReplyToSourceID)
			re.ReplyToSourceID = &id
		}
		if t.Content != nil {
			data, kind, err := encodeContent(t.Content)
			if err != nil {
				return nil, err
			}
			re.Content = &envelope{Kind: kind, Data: data}
		}
		return json.Marshal(typedEnvelope{Regular: re})
	case model.TypedService:
		data, kind, err := encodeServiceContent(t.Content)
		if err != nil {
			return nil, err
		}
		return json.Marshal(typedEnvelope{Service: &envelope{Kind: kind, Data: data}})
	default:
		return nil, fmt.Errorf("unknown message typed payload %T", typed)
	}
}

func decodeTyped(raw []byte) (model.MessageTyped, error) {
	var te typedEnvelope
	if err := json.Unmarshal(raw, &te); err != nil {
		return nil, err
	}
	switch {
	case te.Regular != nil:
		r := te.Regular
		tr := model.TypedRegular{ForwardFromName: r.ForwardFromName}
		if r.EditTimeUnix != nil {
			t := unixTime(*r.EditTimeUnix)
			tr.EditTime = &t
		}
		if r.ReplyToSourceID != nil {
			sid := model.SourceID(*r.ReplyToSourceID)
			tr.ReplyToSourceID = &sid
		}
		if r.Content != nil {
			content, err := decodeContent(*r.Content)
			if err != nil {
				return nil, err
			}
			tr.Content = content
		}
		return tr, nil
	case te.Service != nil:
		content, err := decodeServiceContent(*te.Service)
		if err != nil {
			return nil, err
		}
		return model.TypedService{Content: content}, nil
	default:
		return nil, fmt.Errorf("typed payload has neither regular nor service set")
	}
}

func encodeContent(c model.Content) (json.RawMessage, string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, "", err
	}
	return data, c.Kind(), nil
}

func decodeContent(e envelope) (model.Content, error) {
	switch e.Kind {
	case "sticker":
		var v model.ContentSticker
		return v, json.Unmarshal(e.Data, &v)
	case "photo":
		var v model.ContentPhoto
		return v, json.Unmarshal(e.Data, &v)
	case "voice_msg":
		var v model.ContentVoiceMsg
		return v, json.Unmarshal(e.Data, &v)
	case "audio":
		var v model.ContentAudio
		return v, json.Unmarshal(e.Data, &v)
	case "video_msg":
		var v model.ContentVideoMsg
		return v, json.Unmarshal(e.Data, &v)
	case "video":
		var v model.ContentVideo
		return v, json.Unmarshal(e.Data, &v)
	case "animation":
		var v model.ContentAnimation
		return v, json.Unmarshal(e.Data, &v)
	case "file":
		var v model.ContentFile
		return v, json.Unmarshal(e.Data, &v)
	case "location":
		var v model.ContentLocation
		return v, json.Unmarshal(e.Data, &v)
	case "poll":
		var v model.ContentPoll
		return v, json.Unmarshal(e.Data, &v)
	case "shared_contact":
		var v model.ContentSharedContact
		return v, json.Unmarshal(e.Data, &v)
	default:
		return nil, fmt.Errorf("unknown content kind %q", e.Kind)
	}
}

func encodeServiceContent(c model.ServiceContent) (json.RawMessage, string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, "", err
	}
	return data, c.Kind(), nil
}

func decodeServiceContent(e envelope) (model.ServiceContent, error) {
	switch e.Kind {
	case "phone_call":
		var v model.ServicePhoneCall
		return v, json.Unmarshal(e.Data, &v)
	case "pin_message":
		var v model.ServicePinMessage
		return v, json.Unmarshal(e.Data, &v)
	case "clear_history":
		var v model.ServiceClearHistory
		return v, json.Unmarshal(e.Data, &v)
	case "status_text_changed":
		var v model.ServiceStatusTextChanged
		return v, json.Unmarshal(e.Data, &v)
	case "notice":
		var v model.ServiceNotice
		return v, json.Unmarshal(e.Data, &v)
	case "group_create":
		var v model.ServiceGroupCreate
		return v, json.Unmarshal(e.Data, &v)
	case "group_edit_title":
		var v model.ServiceGroupEditTitle
		return v, json.Unmarshal(e.Data, &v)
	case "group_edit_photo":
		var v model.ServiceGroupEditPhoto
		return v, json.Unmarshal(e.Data, &v)
	case "group_delete_photo":
		var v model.ServiceGroupDeletePhoto
		return v, json.Unmarshal(e.Data, &v)
	case "group_invite_members":
		var v model.ServiceGroupInviteMembers
		return v, json.Unmarshal(e.Data, &v)
	case "group_remove_members":
		var v model.ServiceGroupRemoveMembers
		return v, json.Unmarshal(e.Data, &v)
	case "group_migrate_from":
		var v model.ServiceGroupMigrateFrom
		return v, json.Unmarshal(e.Data, &v)
	case "group_migrate_to":
		var v model.ServiceGroupMigrateTo
		return v, json.Unmarshal(e.Data, &v)
	case "group_call":
		var v model.ServiceGroupCall
		return v, json.Unmarshal(e.Data, &v)
	case "suggest_profile_photo":
		var v model.ServiceSuggestProfilePhoto
		return v, json.Unmarshal(e.Data, &v)
	case "block_user":
		var v model.ServiceBlockUser
		return v, json.Unmarshal(e.Data, &v)
	default:
		return nil, fmt.Errorf("unknown service content kind %q", e.Kind)
	}
}
