package repositories

import (
	"fmt"
	"time"

	"secure-chat/domain"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format so that fields can be added
// later without rewriting existing values. Unknown fields are skipped.

const (
	userFieldUsername     protowire.Number = 1
	userFieldPasswordHash protowire.Number = 2
	userFieldCreatedAt    protowire.Number = 3

	messageFieldID       protowire.Number = 1
	messageFieldUsername protowire.Number = 2
	messageFieldText     protowire.Number = 3
	messageFieldAt       protowire.Number = 4
)

func encodeUser(u User) []byte {
	var b []byte
	b = protowire.AppendTag(b, userFieldUsername, protowire.BytesType)
	b = protowire.AppendString(b, u.Username)
	b = protowire.AppendTag(b, userFieldPasswordHash, protowire.BytesType)
	b = protowire.AppendString(b, u.PasswordHash)
	b = protowire.AppendTag(b, userFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.CreatedAt.Unix()))
	return b
}

func decodeUser(b []byte) (User, error) {
	var u User
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == userFieldUsername && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			u.Username = v
			return n
		case num == userFieldPasswordHash && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			u.PasswordHash = v
			return n
		case num == userFieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			u.CreatedAt = time.Unix(int64(v), 0).UTC()
			return n
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
	return u, err
}

func encodeMessage(m domain.ChatMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, messageFieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, m.ID)
	b = protowire.AppendTag(b, messageFieldUsername, protowire.BytesType)
	b = protowire.AppendString(b, m.Username)
	b = protowire.AppendTag(b, messageFieldText, protowire.BytesType)
	b = protowire.AppendString(b, m.Text)
	b = protowire.AppendTag(b, messageFieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.At.UnixNano()))
	return b
}

func decodeMessage(b []byte) (domain.ChatMessage, error) {
	var m domain.ChatMessage
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == messageFieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.ID = v
			return n
		case num == messageFieldUsername && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Username = v
			return n
		case num == messageFieldText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Text = v
			return n
		case num == messageFieldAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.At = time.Unix(0, int64(v)).UTC()
			return n
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
	return m, err
}

// consumeFields walks every field of a record. fn consumes the value and
// returns the number of bytes read, negative on a malformed value.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n = fn(num, typ, b)
		if n < 0 {
			return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
