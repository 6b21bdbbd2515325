package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Field is one bank-supplied value. Present distinguishes an absent key from an empty one.
type Field struct {
	Value   string
	Present bool
}

// IsSet reports whether the field was sent with a non-empty value
func (f Field) IsSet() bool {
	return f.Present && f.Value != ""
}

// CallbackForm is a bank callback (success or failure) after parsing.
// Keys are matched case-insensitively and values are trimmed.
type CallbackForm struct {
	PaymentID Field // paymentid
	Result    Field // result
	TrackID   Field // trackid
	TranID    Field // tranid
	Auth      Field // auth
	Ref       Field // ref
	PostDate  Field // postdate
	Amount    Field // amt
	Hash      Field // hash
	TranData  Field // trandata (encrypted_json mode)
	UDF1      Field // booking id echoed back
	UDF2      Field
	UDF3      Field
	UDF4      Field
	UDF5      Field
	Error     Field // Error
	ErrorText Field // ErrorText
}

var callbackKeys = map[string]func(*CallbackForm) *Field{
	"paymentid": func(f *CallbackForm) *Field { return &f.PaymentID },
	"result":    func(f *CallbackForm) *Field { return &f.Result },
	"trackid":   func(f *CallbackForm) *Field { return &f.TrackID },
	"tranid":    func(f *CallbackForm) *Field { return &f.TranID },
	"auth":      func(f *CallbackForm) *Field { return &f.Auth },
	"ref":       func(f *CallbackForm) *Field { return &f.Ref },
	"postdate":  func(f *CallbackForm) *Field { return &f.PostDate },
	"amt":       func(f *CallbackForm) *Field { return &f.Amount },
	"hash":      func(f *CallbackForm) *Field { return &f.Hash },
	"trandata":  func(f *CallbackForm) *Field { return &f.TranData },
	"udf1":      func(f *CallbackForm) *Field { return &f.UDF1 },
	"udf2":      func(f *CallbackForm) *Field { return &f.UDF2 },
	"udf3":      func(f *CallbackForm) *Field { return &f.UDF3 },
	"udf4":      func(f *CallbackForm) *Field { return &f.UDF4 },
	"udf5":      func(f *CallbackForm) *Field { return &f.UDF5 },
	"error":     func(f *CallbackForm) *Field { return &f.Error },
	"errortext": func(f *CallbackForm) *Field { return &f.ErrorText },
}

// ParseCallbackForm maps posted form values onto a CallbackForm. Unknown keys are ignored.
// When a key repeats, the first non-empty value wins.
func ParseCallbackForm(values url.Values) CallbackForm {
	var form CallbackForm
	for key, vals := range values {
		accessor, ok := callbackKeys[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		field := accessor(&form)
		field.Present = true
		if field.Value != "" {
			continue
		}
		for _, v := range vals {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				field.Value = trimmed
				break
			}
		}
	}
	return form
}

// HasOutcomeSignal reports whether the bank sent any result or error indication
func (f CallbackForm) HasOutcomeSignal() bool {
	return f.Result.IsSet() || f.Error.IsSet() || f.ErrorText.IsSet()
}

// AuditPayload returns the fields safe to persist. Digests and ciphertext are dropped.
func (f CallbackForm) AuditPayload() map[string]interface{} {
	out := make(map[string]interface{})
	for key, accessor := range callbackKeys {
		if key == "hash" || key == "trandata" {
			continue
		}
		if field := accessor(&f); field.Present {
			out[key] = field.Value
		}
	}
	if f.Hash.Present {
		out["hash_present"] = true
	}
	if f.TranData.Present {
		out["trandata_present"] = true
	}
	return out
}

// ParseCallbackPayload decodes the decrypted trandata of an encrypted_json callback.
// The bank sends either a JSON object, a JSON array holding one object, or a query string.
func ParseCallbackPayload(plaintext string) (url.Values, error) {
	trimmed := strings.TrimSpace(plaintext)
	if trimmed == "" {
		return nil, fmt.Errorf("empty callback payload")
	}

	switch trimmed[0] {
	case '[':
		var items []map[string]interface{}
		if err := decodeJSON(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid callback payload: %w", err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("empty callback payload array")
		}
		return jsonToValues(items[0]), nil
	case '{':
		var item map[string]interface{}
		if err := decodeJSON(trimmed, &item); err != nil {
			return nil, fmt.Errorf("invalid callback payload: %w", err)
		}
		return jsonToValues(item), nil
	default:
		values, err := url.ParseQuery(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid callback payload: %w", err)
		}
		return values, nil
	}
}

func decodeJSON(s string, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewBufferString(s))
	dec.UseNumber()
	return dec.Decode(dest)
}

func jsonToValues(item map[string]interface{}) url.Values {
	values := url.Values{}
	for key, raw := range item {
		switch v := raw.(type) {
		case nil:
			values.Set(key, "")
		case string:
			values.Set(key, v)
		case json.Number:
			values.Set(key, v.String())
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values
}
