package types

// MessageType discriminates the domain message carried by a reassembled buffer.
type MessageType string

// Message types exchanged between parameter-averaging nodes.
const (
	MessageTypeParameterDelta  MessageType = "parameter_delta"
	MessageTypeGradientUpdate  MessageType = "gradient_update"
	MessageTypeModelParameters MessageType = "model_parameters"
	MessageTypeHandshake       MessageType = "handshake"
)

// MessageEnvelope is the msgpack document inside every reassembled buffer.
// Body is opaque to the transport layers and decoded by the handler
// registered for Type.
type MessageEnvelope struct {
	Type MessageType `msgpack:"type"`
	Body []byte      `msgpack:"body"`
}
