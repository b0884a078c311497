package models

import "strings"

// stubTxHash is the value persisted for records created while chain
// integration was disabled. It is only interpreted at the storage boundary.
const stubTxHash = "0xstub"

// TxKind distinguishes the three states of an on-chain reference.
type TxKind int

const (
	// TxNone means no transaction was ever stored.
	TxNone TxKind = iota
	// TxDisabled means the record was written while the chain registry was disabled.
	TxDisabled
	// TxRecorded means a real transaction hash is stored.
	TxRecorded
)

func (k TxKind) String() string {
	switch k {
	case TxDisabled:
		return "disabled"
	case TxRecorded:
		return "recorded"
	default:
		return "none"
	}
}

// TxRef is an on-chain transaction reference. The zero value is TxNone.
type TxRef struct {
	kind TxKind
	hash string
}

func NoTransaction() TxRef { return TxRef{kind: TxNone} }

func DisabledTransaction() TxRef { return TxRef{kind: TxDisabled} }

// RecordedTransaction references a mined transaction. An empty hash yields TxNone.
func RecordedTransaction(hash string) TxRef {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return NoTransaction()
	}
	return TxRef{kind: TxRecorded, hash: hash}
}

func (t TxRef) Kind() TxKind { return t.kind }

// Hash returns the transaction hash for recorded references.
func (t TxRef) Hash() (string, bool) {
	if t.kind != TxRecorded {
		return "", false
	}
	return t.hash, true
}

// IsRecorded reports whether a real transaction is referenced.
func (t TxRef) IsRecorded() bool { return t.kind == TxRecorded }

// ParseTxRef maps a persisted tx_hash column value onto a TxRef.
func ParseTxRef(stored *string) TxRef {
	if stored == nil {
		return NoTransaction()
	}
	v := strings.TrimSpace(*stored)
	switch {
	case v == "":
		return NoTransaction()
	case strings.EqualFold(v, stubTxHash):
		return DisabledTransaction()
	default:
		return RecordedTransaction(v)
	}
}

// StorageValue is the inverse of ParseTxRef; nil means SQL NULL.
func (t TxRef) StorageValue() *string {
	switch t.kind {
	case TxDisabled:
		v := stubTxHash
		return &v
	case TxRecorded:
		v := t.hash
		return &v
	default:
		return nil
	}
}

// String renders the reference for API responses and logs.
func (t TxRef) String() string {
	switch t.kind {
	case TxDisabled:
		return stubTxHash
	case TxRecorded:
		return t.hash
	default:
		return ""
	}
}
