package core

// FieldType is the declared type of a content-type field.
type FieldType string

const (
	FieldSymbol   FieldType = "Symbol"
	FieldText     FieldType = "Text"
	FieldRichText FieldType = "RichText"
	FieldInteger  FieldType = "Integer"
	FieldNumber   FieldType = "Number"
	FieldBoolean  FieldType = "Boolean"
	FieldDate     FieldType = "Date"
	FieldObject   FieldType = "Object"
	FieldLink     FieldType = "Link"
	FieldArray    FieldType = "Array"
	FieldLocation FieldType = "Location"
)

// IsText reports whether values of the type are single-line or plain text.
func (t FieldType) IsText() bool {
	return t == FieldSymbol || t == FieldText
}

// FieldDef declares one field of a content type.
type FieldDef struct {
	ID        string    `json:"id" yaml:"id" toml:"id"`
	Type      FieldType `json:"type" yaml:"type" toml:"type"`
	Localized bool      `json:"localized" yaml:"localized" toml:"localized"`
}

// ContentType is the schema an entity's fields are normalized against.
type ContentType struct {
	ID     string     `json:"id" yaml:"id" toml:"id"`
	Fields []FieldDef `json:"fields" yaml:"fields" toml:"fields"`
}

// Field looks up a field declaration by ID.
func (c ContentType) Field(id string) (FieldDef, bool) {
	for _, f := range c.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDef{}, false
}

// AssetContentType is the built-in schema of assets.
var AssetContentType = ContentType{
	ID: "asset",
	Fields: []FieldDef{
		{ID: "title", Type: FieldSymbol, Localized: true},
		{ID: "description", Type: FieldText, Localized: true},
		{ID: "file", Type: FieldObject, Localized: true},
	},
}

// SchemaProvider resolves content types by ID.
type SchemaProvider interface {
	ContentType(id string) (ContentType, bool)
}

// LocaleProvider lists the locale codes currently enabled for editing.
type LocaleProvider interface {
	EnabledLocales() []string
}

// StaticSchema is a fixed set of content types keyed by ID.
type StaticSchema map[string]ContentType

func (s StaticSchema) ContentType(id string) (ContentType, bool) {
	ct, ok := s[id]
	return ct, ok
}

// StaticLocales is a fixed list of enabled locale codes.
type StaticLocales []string

func (l StaticLocales) EnabledLocales() []string {
	return l
}

// ContentTypeOf resolves the schema for an entity: the built-in asset schema
// for assets, the provider's content type for entries.
func ContentTypeOf(sys Sys, schema SchemaProvider) (ContentType, bool) {
	if sys.Type == TypeAsset {
		return AssetContentType, true
	}
	if schema == nil || sys.ContentType == "" {
		return ContentType{}, false
	}
	return schema.ContentType(sys.ContentType)
}
