package solana

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-swapbot/internal/domain"
)

// Solana legacy wire format sizes.
const (
	signatureLen = 64
	pubkeyLen    = 32
	blockhashLen = 32
)

// LegacyTransaction is a decoded legacy-format transaction: a compact array
// of signatures followed by the message. Decoding and re-encoding an
// unmodified transaction is byte-identical.
type LegacyTransaction struct {
	Signatures [][]byte
	Message    Message
}

// Message is the signed payload of a legacy transaction.
type Message struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
	AccountKeys                 [][]byte // 32 bytes each
	RecentBlockhash             []byte   // 32 bytes
	Instructions                []CompiledInstruction
}

// CompiledInstruction references accounts and program by message index.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []byte
	Data           []byte
}

// ParseLegacyTransaction decodes serialized legacy transaction bytes.
// Versioned transactions (high bit set in the first message byte) are
// rejected; the caller must not guess-decode other formats.
func ParseLegacyTransaction(raw []byte) (*LegacyTransaction, error) {
	r := &byteReader{buf: raw}

	sigCount, err := r.compactU16()
	if err != nil {
		return nil, fmt.Errorf("signature count: %w", err)
	}

	tx := &LegacyTransaction{Signatures: make([][]byte, 0, sigCount)}
	for i := 0; i < sigCount; i++ {
		sig, err := r.bytes(signatureLen)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		tx.Signatures = append(tx.Signatures, sig)
	}

	prefix, err := r.peek()
	if err != nil {
		return nil, fmt.Errorf("message header: %w", err)
	}
	if prefix&0x80 != 0 {
		return nil, fmt.Errorf("versioned transaction (v%d): legacy format required", prefix&0x7f)
	}

	if err := parseMessage(r, &tx.Message); err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after message", r.remaining())
	}
	return tx, nil
}

func parseMessage(r *byteReader, m *Message) error {
	header, err := r.bytes(3)
	if err != nil {
		return fmt.Errorf("message header: %w", err)
	}
	m.NumRequiredSignatures = header[0]
	m.NumReadonlySignedAccounts = header[1]
	m.NumReadonlyUnsignedAccounts = header[2]

	keyCount, err := r.compactU16()
	if err != nil {
		return fmt.Errorf("account key count: %w", err)
	}
	if keyCount < int(m.NumRequiredSignatures) {
		return fmt.Errorf("%d account keys for %d required signatures", keyCount, m.NumRequiredSignatures)
	}
	m.AccountKeys = make([][]byte, 0, keyCount)
	for i := 0; i < keyCount; i++ {
		key, err := r.bytes(pubkeyLen)
		if err != nil {
			return fmt.Errorf("account key %d: %w", i, err)
		}
		m.AccountKeys = append(m.AccountKeys, key)
	}

	m.RecentBlockhash, err = r.bytes(blockhashLen)
	if err != nil {
		return fmt.Errorf("recent blockhash: %w", err)
	}

	instrCount, err := r.compactU16()
	if err != nil {
		return fmt.Errorf("instruction count: %w", err)
	}
	m.Instructions = make([]CompiledInstruction, 0, instrCount)
	for i := 0; i < instrCount; i++ {
		var ins CompiledInstruction
		idx, err := r.bytes(1)
		if err != nil {
			return fmt.Errorf("instruction %d program index: %w", i, err)
		}
		ins.ProgramIDIndex = idx[0]

		nAccounts, err := r.compactU16()
		if err != nil {
			return fmt.Errorf("instruction %d account count: %w", i, err)
		}
		ins.AccountIndexes, err = r.bytes(nAccounts)
		if err != nil {
			return fmt.Errorf("instruction %d accounts: %w", i, err)
		}

		dataLen, err := r.compactU16()
		if err != nil {
			return fmt.Errorf("instruction %d data length: %w", i, err)
		}
		ins.Data, err = r.bytes(dataLen)
		if err != nil {
			return fmt.Errorf("instruction %d data: %w", i, err)
		}

		m.Instructions = append(m.Instructions, ins)
	}
	return nil
}

// SetRecentBlockhash replaces the message's recent blockhash. Existing
// signatures are invalidated and cleared.
func (tx *LegacyTransaction) SetRecentBlockhash(hash string) error {
	decoded, err := base58.Decode(hash)
	if err != nil {
		return fmt.Errorf("decode blockhash: %w", err)
	}
	if len(decoded) != blockhashLen {
		return fmt.Errorf("blockhash must be %d bytes, got %d", blockhashLen, len(decoded))
	}
	tx.Message.RecentBlockhash = decoded
	for i := range tx.Signatures {
		tx.Signatures[i] = make([]byte, signatureLen)
	}
	return nil
}

// Sign signs the message with the wallet and places the signature at the
// wallet's signer index. The wallet must be one of the message's required
// signers.
func (tx *LegacyTransaction) Sign(wallet *domain.Wallet) error {
	idx := -1
	pub := wallet.PublicKey()
	for i := 0; i < int(tx.Message.NumRequiredSignatures) && i < len(tx.Message.AccountKeys); i++ {
		if bytes.Equal(tx.Message.AccountKeys[i], pub) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("wallet %s is not a required signer", wallet.Address())
	}

	for len(tx.Signatures) < int(tx.Message.NumRequiredSignatures) {
		tx.Signatures = append(tx.Signatures, make([]byte, signatureLen))
	}

	tx.Signatures[idx] = wallet.Sign(tx.MessageBytes())
	return nil
}

// Signature returns the base58 transaction signature (the fee payer's
// signature at index 0), or "" if unsigned.
func (tx *LegacyTransaction) Signature() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	empty := true
	for _, b := range tx.Signatures[0] {
		if b != 0 {
			empty = false
			break
		}
	}
	if empty {
		return ""
	}
	return base58.Encode(tx.Signatures[0])
}

// MessageBytes encodes the message portion (the bytes that get signed).
func (tx *LegacyTransaction) MessageBytes() []byte {
	m := &tx.Message
	var buf bytes.Buffer
	buf.WriteByte(m.NumRequiredSignatures)
	buf.WriteByte(m.NumReadonlySignedAccounts)
	buf.WriteByte(m.NumReadonlyUnsignedAccounts)
	writeCompactU16(&buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf.Write(key)
	}
	buf.Write(m.RecentBlockhash)
	writeCompactU16(&buf, len(m.Instructions))
	for _, ins := range m.Instructions {
		buf.WriteByte(ins.ProgramIDIndex)
		writeCompactU16(&buf, len(ins.AccountIndexes))
		buf.Write(ins.AccountIndexes)
		writeCompactU16(&buf, len(ins.Data))
		buf.Write(ins.Data)
	}
	return buf.Bytes()
}

// Serialize encodes the full transaction (signatures + message).
func (tx *LegacyTransaction) Serialize() []byte {
	var buf bytes.Buffer
	writeCompactU16(&buf, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		buf.Write(sig)
	}
	buf.Write(tx.MessageBytes())
	return buf.Bytes()
}

// byteReader is a bounds-checked cursor over raw transaction bytes.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *byteReader) peek() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of input at offset %d", r.pos)
	}
	return r.buf[r.pos], nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// compactU16 reads a compact-u16 (shortvec) length prefix.
func (r *byteReader) compactU16() (int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		b, err := r.peek()
		if err != nil {
			return 0, err
		}
		r.pos++
		value |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			if value > 0xffff {
				return 0, fmt.Errorf("compact-u16 overflow: %d", value)
			}
			return int(value), nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("compact-u16 too long")
}

// writeCompactU16 writes a compact-u16 (shortvec) length prefix.
func writeCompactU16(buf *bytes.Buffer, n int) {
	v := uint(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
