package messaging

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// envelope 线上格式：类型标签 + CBOR 编码的消息体
type envelope struct {
	Kind Kind            `cbor:"1,keyasint"`
	Body cbor.RawMessage `cbor:"2,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	if encMode, err = opts.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{MaxArrayElements: 1 << 16}).DecMode(); err != nil {
		panic(err)
	}
}

// Encode 编码消息
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}
	body, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("messaging: encode %s: %w", m.Kind(), err)
	}
	return encMode.Marshal(envelope{Kind: m.Kind(), Body: body})
}

// Decode 解码消息
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("messaging: decode envelope: %w", err)
	}

	m, err := newMessage(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := decMode.Unmarshal(env.Body, m); err != nil {
		return nil, fmt.Errorf("messaging: decode %s: %w", env.Kind, err)
	}
	return m, nil
}

func newMessage(k Kind) (Message, error) {
	switch k {
	case KindPing:
		return &Ping{}, nil
	case KindPong:
		return &Pong{}, nil
	case KindFindNode:
		return &FindNode{}, nil
	case KindFindNodeResponse:
		return &FindNodeResponse{}, nil
	case KindFindValue:
		return &FindValue{}, nil
	case KindFindValueResponse:
		return &FindValueResponse{}, nil
	case KindStore:
		return &Store{}, nil
	case KindStoreResponse:
		return &StoreResponse{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
}
