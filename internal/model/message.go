package model

type (
	// EncodedPayloadWithRecipients is the encrypted envelope exchanged between
	// nodes. RecipientBoxes[i] is the sealed master key for RecipientKeys[i].
	EncodedPayloadWithRecipients struct {
		SenderKey       Key
		CipherText      []byte
		CipherTextNonce []byte
		RecipientBoxes  [][]byte
		RecipientNonce  []byte
		RecipientKeys   []Key
	}
)

// IndexOfRecipient returns the position of k in RecipientKeys, or -1.
func (p *EncodedPayloadWithRecipients) IndexOfRecipient(k Key) int {
	for i, rk := range p.RecipientKeys {
		if rk == k {
			return i
		}
	}
	return -1
}

func (p *EncodedPayloadWithRecipients) HasRecipient(k Key) bool {
	return p.IndexOfRecipient(k) >= 0
}

// Clone returns a deep copy.
func (p *EncodedPayloadWithRecipients) Clone() *EncodedPayloadWithRecipients {
	c := &EncodedPayloadWithRecipients{
		SenderKey:       p.SenderKey,
		CipherText:      cloneBytes(p.CipherText),
		CipherTextNonce: cloneBytes(p.CipherTextNonce),
		RecipientNonce:  cloneBytes(p.RecipientNonce),
	}
	if p.RecipientBoxes != nil {
		c.RecipientBoxes = make([][]byte, len(p.RecipientBoxes))
		for i, b := range p.RecipientBoxes {
			c.RecipientBoxes[i] = cloneBytes(b)
		}
	}
	if p.RecipientKeys != nil {
		c.RecipientKeys = append([]Key(nil), p.RecipientKeys...)
	}
	return c
}

// StripTo returns a new payload that carries only the box of recipient k.
// The second result is false when k is not a recipient; the copy is then
// unpruned.
func (p *EncodedPayloadWithRecipients) StripTo(k Key) (*EncodedPayloadWithRecipients, bool) {
	idx := p.IndexOfRecipient(k)
	c := p.Clone()
	if idx < 0 || idx >= len(p.RecipientBoxes) {
		return c, false
	}
	c.RecipientBoxes = [][]byte{cloneBytes(p.RecipientBoxes[idx])}
	c.RecipientKeys = []Key{k}
	return c, true
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
