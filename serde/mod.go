// Package serde defines the primitives to serialize and deserialize (serde)
// the messages exchanged with the node, such as the transactions submitted
// through the gateway.
//
// A message is serialized by the format engine registered for the format of
// the context, which lets the data model stay independent of the encoding.
package serde

// Format is the identifier of an encoding format.
type Format string

// FormatJSON is the identifier of the JSON format.
const FormatJSON Format = "JSON"

// Message is the interface a data model should implement to be serialized.
type Message interface {
	// Serialize returns the data of the message encoded in the format of the
	// context.
	Serialize(ctx Context) ([]byte, error)
}

// Factory is the interface to implement to instantiate a data model from its
// serialized form.
type Factory interface {
	// Deserialize returns the message decoded from the data according to the
	// format of the context.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// FormatEngine is the interface to implement to support a format for a data
// model.
type FormatEngine interface {
	// Encode returns the data of the message.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode returns the message decoded from the data.
	Decode(ctx Context, data []byte) (Message, error)
}
