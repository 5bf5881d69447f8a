package logix

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/amrhady2/go-logix-cip/cip"
)

// ReadResult is one read_tag outcome: either a scalar value with its type,
// or a BOOL-bit extraction (Type is always TypeBOOL in that case).
type ReadResult struct {
	Name  string
	Value interface{}
	Type  cip.CipType
	Err   error
}

// WriteItem is one (name, value, type) entry for a batched write_tag call.
type WriteItem struct {
	Name  string
	Value interface{}
	Type  cip.CipType
}

// WriteResult reports whether one batched write succeeded.
type WriteResult struct {
	Name string
	OK   bool
	Err  error
}

// ArrayElement is one (index, value) pair produced by ReadArray.
type ArrayElement struct {
	Index int
	Value interface{}
}

// normalizeTagRef splits a trailing ".N" integer suffix off a tag
// reference, per §4.8's "bit N of integer base" rule.
func normalizeTagRef(tag string) (base string, bit int, hasBit bool) {
	i := strings.LastIndexByte(tag, '.')
	if i < 0 || i == len(tag)-1 {
		return tag, 0, false
	}
	suffix := tag[i+1:]
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return tag, 0, false
	}
	return tag[:i], n, true
}

// isArrayElemRef reports whether base syntactically addresses a BOOL-array
// element (contains a bracketed subscript), which forces a 4-byte
// Read-Modify-Write mask per §4.3.
func isArrayElemRef(base string) bool {
	return strings.ContainsRune(base, '[')
}

// normalizeBoolIndex recognizes a bracket-subscript BOOL-array write
// reference such as "Flags[37]" and rewrites it to the DWORD element that
// physically backs bit 37 ("Flags[1]", bit 5), per §9's BOOL-array
// addressing rule: a dotted index and a bracket index name the same
// physical bit, and the array is actually stored 32 bits to a DWORD
// element. ok is false for any tag that does not end in "[N]".
func normalizeBoolIndex(tag string) (base string, bit int, ok bool) {
	if !strings.HasSuffix(tag, "]") {
		return tag, 0, false
	}
	open := strings.LastIndexByte(tag, '[')
	if open < 0 {
		return tag, 0, false
	}
	idx, err := strconv.Atoi(tag[open+1 : len(tag)-1])
	if err != nil || idx < 0 {
		return tag, 0, false
	}
	return fmt.Sprintf("%s[%d]", tag[:open], idx/32), idx % 32, true
}

// ReadTag reads one scalar tag, or one bit of an integer host if the
// reference ends in ".N".
func (c *Client) ReadTag(tag string) (*ReadResult, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	base, bit, hasBit := normalizeTagRef(tag)

	path, ok := cip.BuildTagPath(base)
	if !ok {
		err := &cip.DataError{Message: fmt.Sprintf("cannot build request path for tag %q", tag), Code: cip.ErrReadFailure}
		c.setLastRead(tag, nil, cip.TypeUnknown, err)
		return nil, err
	}

	seq := c.transport.NextSequence()
	reply, err := c.send(cip.FrameReadTag(seq, path))
	if err != nil {
		c.setLastRead(tag, nil, cip.TypeUnknown, err)
		return nil, err
	}
	if len(reply.Data) < 2 {
		err := &cip.DataError{Message: "read tag reply truncated", Code: cip.ErrReadFailure}
		c.setLastRead(tag, nil, cip.TypeUnknown, err)
		return nil, err
	}

	typeCode := binary.LittleEndian.Uint16(reply.Data[0:2])
	typ, ok := cip.IDataType[typeCode]
	if !ok {
		err := &cip.DataError{Message: fmt.Sprintf("unknown data type code 0x%04X", typeCode), Code: cip.ErrReadFailure}
		c.setLastRead(tag, nil, cip.TypeUnknown, err)
		return nil, err
	}
	value, err := cip.Unpack(typ, reply.Data[2:])
	if err != nil {
		c.setLastRead(tag, nil, typ, err)
		return nil, err
	}

	if hasBit {
		bits := cip.Bits(typ)
		if bits == 0 || bit >= bits {
			res := &ReadResult{Name: tag, Value: nil, Type: cip.TypeBOOL}
			c.setLastRead(tag, nil, cip.TypeBOOL, nil)
			return res, nil
		}
		n, _ := toInt64Value(value)
		bv := (n>>uint(bit))&1 != 0
		res := &ReadResult{Name: tag, Value: bv, Type: cip.TypeBOOL}
		c.setLastRead(tag, bv, cip.TypeBOOL, nil)
		return res, nil
	}

	res := &ReadResult{Name: tag, Value: value, Type: typ}
	c.setLastRead(tag, value, typ, nil)
	return res, nil
}

// ReadTagMulti batches several tag reads (including bit references against
// a shared base) into one Multiple Service Packet.
func (c *Client) ReadTagMulti(tags []string) ([]ReadResult, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}

	type baseInfo struct {
		bits []int
	}
	order := []string{}
	byBase := map[string]*baseInfo{}

	for _, tag := range tags {
		base, bit, hasBit := normalizeTagRef(tag)
		info, seen := byBase[base]
		if !seen {
			info = &baseInfo{}
			byBase[base] = info
			order = append(order, base)
		}
		if hasBit {
			info.bits = append(info.bits, bit)
		}
	}

	var subs []cip.SubRequest
	var validBases []string
	for _, base := range order {
		path, ok := cip.BuildTagPath(base)
		if !ok {
			continue
		}
		subs = append(subs, cip.SubRequest{Service: cip.SvcReadTag, Path: path, Body: []byte{1, 0}})
		validBases = append(validBases, base)
	}

	seq := c.transport.NextSequence()
	msg := cip.EncodeMultipleServicePacket(seq, subs)
	reply, err := c.send(msg)
	if err != nil {
		return nil, err
	}
	replies, err := cip.DecodeMultipleServicePacketReply(reply.Data)
	if err != nil {
		return nil, err
	}

	var results []ReadResult
	for i, base := range validBases {
		if i >= len(replies) {
			break
		}
		sub := replies[i]
		info := byBase[base]
		if !sub.OK {
			results = append(results, ReadResult{Name: base, Err: &cip.DataError{Message: fmt.Sprintf("sub-reply status 0x%02X", sub.GeneralStatus), Code: cip.ErrReadFailure}})
			continue
		}
		if len(sub.Data) < 2 {
			results = append(results, ReadResult{Name: base, Err: &cip.DataError{Message: "sub-reply truncated", Code: cip.ErrReadFailure}})
			continue
		}
		typeCode := binary.LittleEndian.Uint16(sub.Data[0:2])
		typ, ok := cip.IDataType[typeCode]
		if !ok {
			results = append(results, ReadResult{Name: base, Err: &cip.DataError{Message: "unknown data type", Code: cip.ErrReadFailure}})
			continue
		}
		value, err := cip.Unpack(typ, sub.Data[2:])
		if err != nil {
			results = append(results, ReadResult{Name: base, Err: err})
			continue
		}

		if len(info.bits) > 0 {
			n, _ := toInt64Value(value)
			bits := cip.Bits(typ)
			for _, bit := range info.bits {
				name := fmt.Sprintf("%s.%d", base, bit)
				if bits == 0 || bit >= bits {
					results = append(results, ReadResult{Name: name, Value: nil, Type: cip.TypeBOOL})
					continue
				}
				bv := (n>>uint(bit))&1 != 0
				results = append(results, ReadResult{Name: name, Value: bv, Type: cip.TypeBOOL})
			}
		} else {
			results = append(results, ReadResult{Name: base, Value: value, Type: typ})
		}
	}
	return results, nil
}

// ReadArray issues Read Tag Fragmented in a loop until the reply status is
// SUCCESS, accumulating (index, value) pairs, per §4.8's read_array.
func (c *Client) ReadArray(tag string, count uint16, raw bool) ([]ArrayElement, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	path, ok := cip.BuildTagPath(tag)
	if !ok {
		return nil, &cip.DataError{Message: fmt.Sprintf("cannot build request path for tag %q", tag), Code: cip.ErrArrayReadFailure}
	}

	var elements []ArrayElement
	index := 0
	byteOffset := uint32(0)

	for {
		seq := c.transport.NextSequence()
		msg := cip.FrameReadTagFragmented(seq, path, count, byteOffset)
		reply, err := c.send(msg)
		if err != nil {
			return nil, fmt.Errorf("ReadArray: %w", err)
		}
		if len(reply.Data) < 2 {
			return nil, &cip.DataError{Message: "array fragment reply truncated", Code: cip.ErrArrayReadFailure}
		}
		typeCode := binary.LittleEndian.Uint16(reply.Data[0:2])
		typ, ok := cip.IDataType[typeCode]
		if !ok {
			return nil, &cip.DataError{Message: fmt.Sprintf("unknown data type code 0x%04X", typeCode), Code: cip.ErrArrayReadFailure}
		}
		fragment := reply.Data[2:]
		size := cip.Size(typ)
		if size == 0 {
			return nil, &cip.DataError{Message: "array element type has no fixed size", Code: cip.ErrArrayReadFailure}
		}

		idx := 0
		for idx+size <= len(fragment) {
			chunk := fragment[idx : idx+size]
			if raw {
				elements = append(elements, ArrayElement{Index: index, Value: append([]byte{}, chunk...)})
			} else {
				v, err := cip.Unpack(typ, chunk)
				if err != nil {
					return nil, err
				}
				elements = append(elements, ArrayElement{Index: index, Value: v})
			}
			idx += size
			index++
		}

		if !reply.MorePackets {
			break
		}
		byteOffset += uint32(len(fragment))
	}
	return elements, nil
}

// WriteTag writes one scalar tag, or a single bit of an integer host via
// Read-Modify-Write if the reference ends in ".N".
func (c *Client) WriteTag(tag string, value interface{}, typ cip.CipType) error {
	if err := c.ensureSession(); err != nil {
		return err
	}
	base, bit, hasBit := normalizeTagRef(tag)
	if !hasBit && typ == cip.TypeBOOL {
		base, bit, hasBit = normalizeBoolIndex(tag)
	}

	path, ok := cip.BuildTagPath(base)
	if !ok {
		err := &cip.DataError{Message: fmt.Sprintf("cannot build request path for tag %q", tag), Code: cip.ErrWriteFailure}
		c.setLastWrite(tag, value, typ, err)
		return err
	}

	var msg []byte
	if hasBit {
		v, _ := value.(bool)
		orMask, andMask, _, err := cip.BitMasks(bit, v, isArrayElemRef(base))
		if err != nil {
			c.setLastWrite(tag, value, typ, err)
			return err
		}
		seq := c.transport.NextSequence()
		msg = cip.FrameReadModifyWrite(seq, path, orMask, andMask)
	} else {
		encoded, err := cip.Pack(typ, value)
		if err != nil {
			c.setLastWrite(tag, value, typ, err)
			return err
		}
		wireCode, ok := cip.SDataType[typ]
		if !ok {
			err := &cip.DataError{Message: "unsupported write type", Code: cip.ErrWriteFailure}
			c.setLastWrite(tag, value, typ, err)
			return err
		}
		seq := c.transport.NextSequence()
		msg = cip.FrameWriteTag(seq, path, wireCode, encoded)
	}

	_, err := c.send(msg)
	c.setLastWrite(tag, value, typ, err)
	return err
}

// WriteTagMulti batches several writes into one Multiple Service Packet.
// Any item whose path cannot be built or value cannot be encoded is
// reported as a failure and dropped from the batch; the rest proceed.
func (c *Client) WriteTagMulti(items []WriteItem) ([]WriteResult, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}

	var subs []cip.SubRequest
	results := make([]WriteResult, 0, len(items))
	var pendingNames []string

	for _, item := range items {
		base, bit, hasBit := normalizeTagRef(item.Name)
		if !hasBit && item.Type == cip.TypeBOOL {
			base, bit, hasBit = normalizeBoolIndex(item.Name)
		}
		path, ok := cip.BuildTagPath(base)
		if !ok {
			results = append(results, WriteResult{Name: item.Name, OK: false, Err: &cip.DataError{Message: "cannot build request path", Code: cip.ErrWriteFailure}})
			continue
		}
		if hasBit {
			v, _ := item.Value.(bool)
			orMask, andMask, _, err := cip.BitMasks(bit, v, isArrayElemRef(base))
			if err != nil {
				results = append(results, WriteResult{Name: item.Name, OK: false, Err: err})
				continue
			}
			subs = append(subs, cip.SubRequest{Service: cip.SvcReadModifyWriteTag, Path: path, Body: rmwBody(orMask, andMask)})
		} else {
			encoded, err := cip.Pack(item.Type, item.Value)
			if err != nil {
				results = append(results, WriteResult{Name: item.Name, OK: false, Err: err})
				continue
			}
			wireCode, ok := cip.SDataType[item.Type]
			if !ok {
				results = append(results, WriteResult{Name: item.Name, OK: false, Err: &cip.DataError{Message: "unsupported write type", Code: cip.ErrWriteFailure}})
				continue
			}
			body := binary.LittleEndian.AppendUint16(nil, wireCode)
			body = binary.LittleEndian.AppendUint16(body, 1)
			body = append(body, encoded...)
			subs = append(subs, cip.SubRequest{Service: cip.SvcWriteTag, Path: path, Body: body})
		}
		pendingNames = append(pendingNames, item.Name)
	}

	if len(subs) == 0 {
		return results, nil
	}

	seq := c.transport.NextSequence()
	msg := cip.EncodeMultipleServicePacket(seq, subs)
	reply, err := c.send(msg)
	if err != nil {
		return nil, err
	}
	replies, err := cip.DecodeMultipleServicePacketReply(reply.Data)
	if err != nil {
		return nil, err
	}
	for i, name := range pendingNames {
		if i >= len(replies) {
			break
		}
		r := replies[i]
		if r.OK {
			results = append(results, WriteResult{Name: name, OK: true})
		} else {
			results = append(results, WriteResult{Name: name, OK: false, Err: &cip.DataError{Message: fmt.Sprintf("sub-reply status 0x%02X", r.GeneralStatus), Code: cip.ErrWriteFailure}})
		}
	}
	return results, nil
}

func rmwBody(orMask, andMask []byte) []byte {
	body := binary.LittleEndian.AppendUint16(nil, uint16(len(orMask)))
	body = append(body, orMask...)
	body = append(body, andMask...)
	return body
}

const writeArrayFragmentThreshold = 450

// WriteArray splits values into ≥450-byte fragments and writes each with
// Write Tag Fragmented, per §4.8's write_array.
func (c *Client) WriteArray(tag string, values []interface{}, typ cip.CipType) error {
	if err := c.ensureSession(); err != nil {
		return err
	}
	path, ok := cip.BuildTagPath(tag)
	if !ok {
		return &cip.DataError{Message: fmt.Sprintf("cannot build request path for tag %q", tag), Code: cip.ErrArrayWriteFail}
	}
	wireCode, ok := cip.SDataType[typ]
	if !ok {
		return &cip.DataError{Message: "unsupported array element type", Code: cip.ErrArrayWriteFail}
	}

	var fragment []byte
	byteOffset := uint32(0)

	flush := func() error {
		if len(fragment) == 0 {
			return nil
		}
		seq := c.transport.NextSequence()
		msg := cip.FrameWriteTagFragmented(seq, path, wireCode, uint16(len(values)), byteOffset, fragment)
		_, err := c.send(msg)
		if err != nil {
			return err
		}
		byteOffset += uint32(len(fragment))
		fragment = nil
		return nil
	}

	for i, v := range values {
		encoded, err := cip.Pack(typ, v)
		if err != nil {
			return fmt.Errorf("WriteArray: element %d: %w", i, err)
		}
		fragment = append(fragment, encoded...)
		if len(fragment) >= writeArrayFragmentThreshold || i == len(values)-1 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteString writes a Rockwell string structure: LEN as DINT, then DATA as
// a SINT array of signed byte-reinterpreted character codes.
func (c *Client) WriteString(tag string, value string, size int) error {
	if size <= 0 {
		size = cip.StringSizes[0]
	}
	strLen := len(value)
	if strLen > size {
		strLen = size
	}
	if err := c.WriteTag(tag+".LEN", int64(strLen), cip.TypeDINT); err != nil {
		return err
	}

	data := make([]interface{}, size)
	for i := 0; i < size; i++ {
		if i < len(value) {
			b := value[i]
			if b > 127 {
				data[i] = int64(int(b) - 256)
			} else {
				data[i] = int64(b)
			}
		} else {
			data[i] = int64(0)
		}
	}
	return c.WriteArray(tag+".DATA", data, cip.TypeSINT)
}

// ReadString reads LEN (or uses strLen if > 0), then reads DATA and
// reinterprets the signed bytes back into a string, trimming trailing NULs.
func (c *Client) ReadString(tag string, strLen int) (string, error) {
	length := strLen
	if length <= 0 {
		res, err := c.ReadTag(tag + ".LEN")
		if err != nil {
			return "", err
		}
		n, ok := toInt64Value(res.Value)
		if !ok {
			return "", &cip.DataError{Message: "LEN tag did not return an integer", Code: cip.ErrReadFailure}
		}
		length = int(n)
	}
	if length <= 0 {
		return "", nil
	}

	elements, err := c.ReadArray(tag+".DATA", uint16(length), false)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, el := range elements {
		n, _ := toInt64Value(el.Value)
		var ch byte
		if n < 0 {
			ch = byte(n + 256)
		} else {
			ch = byte(n)
		}
		sb.WriteByte(ch)
	}
	return strings.TrimRight(sb.String(), "\x00"), nil
}

func toInt64Value(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
