package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jonny/interactiond/internal/domain/model"
)

// DecodeInteraction parses a verified request body. The type discriminator is
// read first so unknown kinds are rejected before the full decode.
func DecodeInteraction(body []byte) (model.Interaction, error) {
	if !gjson.ValidBytes(body) {
		return model.Interaction{}, &DecodeError{Reason: "malformed JSON"}
	}

	kind, err := peekKind(body)
	if err != nil {
		return model.Interaction{}, err
	}

	var in model.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		return model.Interaction{}, &DecodeError{Reason: err.Error()}
	}
	in.Kind = kind

	if err := validateInteraction(in); err != nil {
		return model.Interaction{}, err
	}
	return in, nil
}

func peekKind(body []byte) (model.InteractionKind, error) {
	typ := gjson.GetBytes(body, "type")
	if !typ.Exists() {
		return 0, &DecodeError{Reason: "missing field `type`"}
	}
	if typ.Type != gjson.Number || typ.Num != float64(int64(typ.Num)) {
		return 0, &DecodeError{Reason: fmt.Sprintf("invalid value for field `type`: %s", typ.Raw)}
	}
	if typ.Num < 0 || typ.Num > 255 {
		return 0, &DecodeError{Reason: fmt.Sprintf("unknown interaction type %s", typ.Raw)}
	}
	kind := model.InteractionKind(typ.Uint())
	if !kind.Known() {
		return 0, &DecodeError{Reason: fmt.Sprintf("unknown interaction type %d", kind)}
	}
	return kind, nil
}

func validateInteraction(in model.Interaction) error {
	if in.Kind == model.KindPing {
		return nil
	}

	if err := requireField("id", in.ID); err != nil {
		return err
	}
	if err := requireField("application_id", in.ApplicationID); err != nil {
		return err
	}
	if err := requireField("token", in.Token); err != nil {
		return err
	}
	if in.Data == nil {
		return &DecodeError{Reason: "missing field `data`"}
	}

	switch in.Kind {
	case model.KindApplicationCommand:
		if err := requireField("data.id", in.Data.ID); err != nil {
			return err
		}
		return requireField("data.name", in.Data.Name)
	case model.KindMessageComponent, model.KindModalSubmit:
		return requireField("data.custom_id", in.Data.CustomID)
	}
	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return &DecodeError{Reason: fmt.Sprintf("missing field `%s`", name)}
	}
	return nil
}
