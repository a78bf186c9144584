package codec

import (
	"fmt"

	"txmanager/internal/model"
)

// EncodePayload lays out a payload as
// sender | cipherText | nonce | boxes | recipientNonce | recipientKeys.
func EncodePayload(p *model.EncodedPayloadWithRecipients) []byte {
	w := &writer{buf: make([]byte, 0, encodedPayloadSize(p))}
	w.bytes(p.SenderKey[:])
	w.bytes(p.CipherText)
	w.bytes(p.CipherTextNonce)

	w.uint64(uint64(len(p.RecipientBoxes)))
	for _, box := range p.RecipientBoxes {
		w.bytes(box)
	}

	w.bytes(p.RecipientNonce)

	w.uint64(uint64(len(p.RecipientKeys)))
	for _, k := range p.RecipientKeys {
		w.bytes(k[:])
	}
	return w.buf
}

func DecodePayload(data []byte) (*model.EncodedPayloadWithRecipients, error) {
	r := &reader{buf: data}

	sender, err := r.bytes()
	if err != nil {
		return nil, fmt.Errorf("decode sender key: %w", err)
	}
	senderKey, err := model.KeyFromBytes(sender)
	if err != nil {
		return nil, fmt.Errorf("decode sender key: %w", err)
	}

	p := &model.EncodedPayloadWithRecipients{SenderKey: senderKey}
	if p.CipherText, err = r.bytes(); err != nil {
		return nil, fmt.Errorf("decode cipher text: %w", err)
	}
	if p.CipherTextNonce, err = r.bytes(); err != nil {
		return nil, fmt.Errorf("decode cipher text nonce: %w", err)
	}

	boxCount, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("decode box count: %w", err)
	}
	p.RecipientBoxes = make([][]byte, 0, boxCount)
	for i := 0; i < boxCount; i++ {
		box, err := r.bytes()
		if err != nil {
			return nil, fmt.Errorf("decode recipient box %d: %w", i, err)
		}
		p.RecipientBoxes = append(p.RecipientBoxes, box)
	}

	if p.RecipientNonce, err = r.bytes(); err != nil {
		return nil, fmt.Errorf("decode recipient nonce: %w", err)
	}

	keyCount, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("decode recipient count: %w", err)
	}
	p.RecipientKeys = make([]model.Key, 0, keyCount)
	for i := 0; i < keyCount; i++ {
		raw, err := r.bytes()
		if err != nil {
			return nil, fmt.Errorf("decode recipient key %d: %w", i, err)
		}
		k, err := model.KeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode recipient key %d: %w", i, err)
		}
		p.RecipientKeys = append(p.RecipientKeys, k)
	}

	if err := r.done(); err != nil {
		return nil, err
	}

	if len(p.RecipientKeys) != 0 && len(p.RecipientKeys) != len(p.RecipientBoxes) {
		return nil, fmt.Errorf("payload has %d boxes for %d recipients", len(p.RecipientBoxes), len(p.RecipientKeys))
	}
	return p, nil
}

func encodedPayloadSize(p *model.EncodedPayloadWithRecipients) int {
	n := 6*lenSize + model.KeySize + len(p.CipherText) + len(p.CipherTextNonce) + len(p.RecipientNonce)
	for _, b := range p.RecipientBoxes {
		n += lenSize + len(b)
	}
	n += len(p.RecipientKeys) * (lenSize + model.KeySize)
	return n
}
