package conversation

import "encoding/json"

// Field wraps an optional patch value and remembers whether the key was
// present in the request body at all, so absent keys leave the stored value
// untouched while explicit nulls clear it.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// NewField returns a present, non-null field carrying value.
func NewField[T any](value T) Field[T] {
	return Field[T]{Set: true, Value: value}
}

// NullField returns a present field carrying an explicit null.
func NullField[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked for keys present in the payload, which is
// what makes presence tracking work.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		f.Null = true
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// UpdatePatch carries the patchable conversation fields. Derived fields
// (token count, timestamps) are deliberately not part of the patch surface.
type UpdatePatch struct {
	Title    Field[string]             `json:"title"`
	Status   Field[ConversationStatus] `json:"status"`
	Summary  Field[string]             `json:"summary"`
	Metadata Field[json.RawMessage]    `json:"metadata"`
}

// Empty reports whether the patch carries no present field.
func (p UpdatePatch) Empty() bool {
	return !p.Title.Set && !p.Status.Set && !p.Summary.Set && !p.Metadata.Set
}
