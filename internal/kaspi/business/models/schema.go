package models

// AttributeType — тип атрибута в таксономии маркетплейса.
type AttributeType string

const (
	AttributeText    AttributeType = "string"
	AttributeNumber  AttributeType = "number"
	AttributeBoolean AttributeType = "boolean"
	AttributeEnum    AttributeType = "enum"
)

// Attribute — один атрибут категории.
type Attribute struct {
	Code        string        `json:"code"`
	Type        AttributeType `json:"type"`
	Mandatory   bool          `json:"mandatory"`
	MultiValued bool          `json:"multiValued"`
}

// CategorySchema — код таксономии, название и упорядоченный список атрибутов.
type CategorySchema struct {
	Code       string      `json:"code"`
	Title      string      `json:"title"`
	Attributes []Attribute `json:"attributes"`
}