package doctypes

import "github.com/jackzampolin/docscan/internal/templateless"

// PreparePayload turns a document type into the body of a create (isEdit
// false) or update (isEdit true) request.
//
// Empty values are dropped, items with an empty instruction are removed
// and item ids are stripped. Only one table style is kept: tablePrompt
// wins over textualTablePrompt. On update the losing style is sent as null
// so the backend clears it; on create it is omitted. extractTable is
// recomputed from what remains.
func PreparePayload(p templateless.Prompt, isEdit bool) map[string]any {
	payload := map[string]any{}

	setString := func(key, val string) {
		if val != "" {
			payload[key] = val
		}
	}
	setOptional := func(key string, val *string) {
		if val != nil && *val != "" {
			payload[key] = *val
		}
	}

	setString("name", p.Name)
	setString("documentType", p.DocumentType)
	setOptional("nameJpn", p.NameJpn)
	setOptional("shortName", p.ShortName)
	setOptional("shortNameJpn", p.ShortNameJpn)
	setOptional("systemPrompt", p.SystemPrompt)
	setOptional("userCustomInstructions", p.UserCustomInstructions)
	setOptional("textualTablePrompt", p.TextualTablePrompt)

	if p.FieldsPrompt != nil {
		payload["fieldsPrompt"] = cleanItems(p.FieldsPrompt)
	}

	var table []templateless.PromptItem
	if len(p.TablePrompt) > 0 {
		table = cleanItems(p.TablePrompt)
		payload["tablePrompt"] = table
		dropField("textualTablePrompt", payload, isEdit)
	} else if p.TablePrompt != nil {
		payload["tablePrompt"] = p.TablePrompt
	}

	if text, ok := payload["textualTablePrompt"].(string); ok && text != "" {
		dropField("tablePrompt", payload, isEdit)
	}

	if !p.ExtractTable {
		dropField("tablePrompt", payload, isEdit)
		dropField("textualTablePrompt", payload, isEdit)
		table = nil
	}

	text, _ := payload["textualTablePrompt"].(string)
	payload["extractTable"] = len(table) > 0 || text != ""

	return payload
}

// dropField nulls key on update and removes it on create.
func dropField(key string, payload map[string]any, isEdit bool) {
	if isEdit {
		payload[key] = nil
		return
	}
	delete(payload, key)
}

// cleanItems drops items whose instruction is present but empty and strips
// item ids.
func cleanItems(items []templateless.PromptItem) []templateless.PromptItem {
	out := make([]templateless.PromptItem, 0, len(items))
	for _, it := range items {
		if it.Instruction != nil && *it.Instruction == "" {
			continue
		}
		it.ID = ""
		out = append(out, it)
	}
	return out
}
