package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
)

type wirePayload struct {
	ID      string  `json:"id"`
	Seq     uint64  `json:"seq"`
	Lengths []int64 `json:"len,omitempty"`
}

func encodeRecordFrame(r Record) ([]byte, error) {
	switch r.Op {
	case OpTypeCreate, OpTypeRemove, OpTypeRead:
	case OpTypeCommit:
		if len(r.Lengths) == 0 {
			return nil, fmt.Errorf("journal: commit record for %s has no lengths", r.ID)
		}
	default:
		return nil, ErrInvalidEntryType
	}
	if r.ID == "" {
		return nil, fmt.Errorf("journal: record id is empty")
	}

	payload, err := json.Marshal(wirePayload{ID: r.ID, Seq: r.Seq, Lengths: r.Lengths})
	if err != nil {
		return nil, fmt.Errorf("journal: marshal payload: %w", err)
	}

	body := make([]byte, 0, 1+len(payload))
	body = append(body, byte(r.Op))
	body = append(body, payload...)

	// Length = CRC(4) + Type(1) + Payload.
	out := make([]byte, headerSize, headerSize+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(4+len(body)))
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	return append(out, body...), nil
}

func decodeRecordFrame(frame []byte) (Record, error) {
	// Frame layout: [crc32:4][type:1][payload...]
	if len(frame) < 5 {
		return Record{}, ErrCorruptedEntry
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	body := frame[4:]
	if crc32.ChecksumIEEE(body) != wantCRC {
		return Record{}, ErrChecksumMismatch
	}

	op := OpType(body[0])
	switch op {
	case OpTypeCreate, OpTypeCommit, OpTypeRemove, OpTypeRead:
	default:
		return Record{}, ErrInvalidEntryType
	}

	var p wirePayload
	if err := json.Unmarshal(body[1:], &p); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptedEntry, err)
	}
	if p.ID == "" {
		return Record{}, ErrCorruptedEntry
	}
	if op == OpTypeCommit && len(p.Lengths) == 0 {
		return Record{}, ErrCorruptedEntry
	}

	return Record{Op: op, ID: p.ID, Seq: p.Seq, Lengths: p.Lengths}, nil
}

func encodeHeader(h Header) ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("journal: marshal header: %w", err)
	}
	out := make([]byte, 0, MagicBytesSize+4+len(data))
	out = append(out, MagicBytes...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	return append(out, data...), nil
}
