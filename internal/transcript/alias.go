package transcript

import "strings"

// Field names a logical Event field.
type Field string

const (
	FieldTranscript   Field = "transcript"
	FieldName         Field = "name"
	FieldPhoneNumber  Field = "phoneNumber"
	FieldEmailAddress Field = "emailAddress"
	FieldCaller       Field = "caller"
)

// AliasTable lists, per field, the payload keys that may carry it in
// priority order. The first key with a non-blank value wins.
type AliasTable map[Field][]string

// DefaultAliases returns the canonical alias table.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldTranscript:   {"transcript", "transcription", "text"},
		FieldName:         {"name", "caller_name", "caller"},
		FieldPhoneNumber:  {"number", "phone_number", "phone", "from"},
		FieldEmailAddress: {"email", "email_address"},
		FieldCaller:       {"caller", "name"},
	}
}

// Lookup returns the first non-blank value for field.
func (t AliasTable) Lookup(fields Fields, field Field) (string, bool) {
	for _, key := range t[field] {
		v, ok := fields[key]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		return v, true
	}
	return "", false
}
