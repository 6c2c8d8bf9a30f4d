package plugin

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/iudanet/ctfclient/internal/models"
)

// Field types of the challenge metadata editor
const (
	FieldText      = "text"
	FieldMultiline = "multiline"
	FieldCode      = "code"
	FieldNumber    = "number"
	FieldSelect    = "select"
	FieldLabel     = "label"
	FieldHR        = "hr"
	FieldGroup     = "group"
)

// Option is a choice of a select field
type Option struct {
	Key   string
	Value string
}

// Field describes one input of the metadata editor.
// Name is the challenge_metadata key it edits.
type Field struct {
	Type     string
	Name     string
	Label    string
	Options  []Option
	Children []Field
}

// MetadataSet is a group of metadata fields contributed by a plugin
type MetadataSet struct {
	Check  func(*models.Challenge, *models.Category) bool
	Fields []Field
}

type metadataEntry struct {
	name string
	set  MetadataSet
}

// RegisterMetadata adds or replaces a named metadata field set
func (r *Registry) RegisterMetadata(name string, set MetadataSet) error {
	if name == "" {
		return ErrEmptyTag
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.metadata {
		if r.metadata[i].name == name {
			r.metadata[i].set = set
			return nil
		}
	}
	r.metadata = append(r.metadata, metadataEntry{name: name, set: set})
	return nil
}

// MetadataFields returns the fields of every set accepting the challenge,
// in registration order
func (r *Registry) MetadataFields(chal *models.Challenge, cat *models.Category) []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var fields []Field
	for _, entry := range r.metadata {
		if entry.set.Check != nil && !entry.set.Check(chal, cat) {
			continue
		}
		fields = append(fields, entry.set.Fields...)
	}
	return fields
}

// WriteFields renders metadata fields with the current values of metadata
func WriteFields(w io.Writer, fields []Field, metadata map[string]any) error {
	return writeFields(w, fields, metadata, "")
}

func writeFields(w io.Writer, fields []Field, metadata map[string]any, indent string) error {
	for _, field := range fields {
		var err error
		switch field.Type {
		case FieldText, FieldMultiline, FieldCode, FieldNumber:
			err = writeInput(w, field, metadata[field.Name], indent)
		case FieldSelect:
			err = writeSelect(w, field, metadata[field.Name], indent)
		case FieldLabel:
			_, err = fmt.Fprintf(w, "%s%s\n", indent, field.Label)
		case FieldHR:
			_, err = fmt.Fprintf(w, "%s%s\n", indent, strings.Repeat("-", 40))
		case FieldGroup:
			if _, err = fmt.Fprintf(w, "%s[%s]\n", indent, field.Label); err == nil {
				err = writeFields(w, field.Children, metadata, indent+"  ")
			}
		default:
			_, err = fmt.Fprintf(w, "%sUnknown field type: %s\n", indent, field.Type)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeInput(w io.Writer, field Field, value any, indent string) error {
	val := "<unset>"
	if value != nil {
		val = fmt.Sprint(value)
	}

	if field.Type == FieldMultiline || field.Type == FieldCode {
		if _, err := fmt.Fprintf(w, "%s%s (%s):\n", indent, field.Label, field.Name); err != nil {
			return err
		}
		for _, line := range strings.Split(val, "\n") {
			if _, err := fmt.Fprintf(w, "%s  | %s\n", indent, line); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := fmt.Fprintf(w, "%s%s (%s): %s\n", indent, field.Label, field.Name, val)
	return err
}

// writeSelect marks the current option, the first one when the value is unknown
func writeSelect(w io.Writer, field Field, value any, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%s (%s):\n", indent, field.Label, field.Name); err != nil {
		return err
	}

	current := 0
	for i, opt := range field.Options {
		if value != nil && opt.Key == fmt.Sprint(value) {
			current = i
			break
		}
	}
	for i, opt := range field.Options {
		mark := " "
		if i == current {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s  (%s) %s\n", indent, mark, opt.Value); err != nil {
			return err
		}
	}
	return nil
}

// sortedKeys возвращает ключи метаданных по алфавиту
func sortedKeys(metadata map[string]any) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
