// .mb ("Monkey Bytecode") file format.
//
// A magic-number + versioned-header design for binary serialization of
// Monkey's constant pool of integers, strings, and compiled functions. Instructions are
// already a byte-encoded stream (pkg/bytecode.Make produces the on-disk
// encoding directly), so there is nothing left to transcode but the
// constant pool.
//
// Binary layout:
//
//	[Header]
//	  Magic Number (4 bytes): "MNKY" (0x4D4E4B59)
//	  Version (4 bytes): format version, currently 1
//	  Flags (4 bytes): reserved, currently 0
//
//	[Constants section]
//	  Count (4 bytes)
//	  For each constant: Type (1 byte) + type-specific payload
//
//	[Instructions section]
//	  Length (4 bytes)
//	  Raw instruction bytes
//
// Constant types:
//
//	0x01 = Integer (int64, 8 bytes)
//	0x02 = String (4-byte length + UTF-8 bytes)
//	0x03 = CompiledFunction (NumLocals uint32, NumParameters uint32,
//	       instructions length uint32, instruction bytes)
package compiler

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kristofer/monkey/pkg/bytecode"
	"github.com/kristofer/monkey/pkg/object"
)

const (
	// MagicNumber is the file signature for .mb files: "MNKY"
	MagicNumber uint32 = 0x4D4E4B59

	// FormatVersion is the current .mb format version.
	FormatVersion uint32 = 1

	formatFlags uint32 = 0
)

const (
	constTypeInteger          byte = 0x01
	constTypeString           byte = 0x02
	constTypeCompiledFunction byte = 0x03
)

// Encode writes bc to w in the .mb binary format.
func Encode(bc *Bytecode, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writeConstants(w, bc.Constants); err != nil {
		return fmt.Errorf("failed to write constants: %w", err)
	}
	if err := writeInstructions(w, bc.Instructions); err != nil {
		return fmt.Errorf("failed to write instructions: %w", err)
	}
	return nil
}

// Decode reads a Bytecode back from r, the inverse of Encode.
func Decode(r io.Reader) (*Bytecode, error) {
	version, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported bytecode version: %d (expected %d)", version, FormatVersion)
	}

	constants, err := readConstants(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read constants: %w", err)
	}

	instructions, err := readInstructions(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read instructions: %w", err)
	}

	return &Bytecode{Instructions: instructions, Constants: constants}, nil
}

func writeHeader(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, formatFlags)
}

func readHeader(r io.Reader) (uint32, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return 0, err
	}
	if magic != MagicNumber {
		return 0, fmt.Errorf("invalid magic number: 0x%08X (expected 0x%08X)", magic, MagicNumber)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}

	var flags uint32
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return 0, err
	}

	return version, nil
}

func writeConstants(w io.Writer, constants []object.Object) error {
	count := uint32(len(constants))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for i, c := range constants {
		if err := writeConstant(w, c); err != nil {
			return fmt.Errorf("failed to write constant %d: %w", i, err)
		}
	}
	return nil
}

func writeConstant(w io.Writer, c object.Object) error {
	switch v := c.(type) {
	case *object.Integer:
		if err := binary.Write(w, binary.LittleEndian, constTypeInteger); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.Value)

	case *object.String:
		if err := binary.Write(w, binary.LittleEndian, constTypeString); err != nil {
			return err
		}
		return writeByteString(w, v.Value)

	case *object.CompiledFunction:
		if err := binary.Write(w, binary.LittleEndian, constTypeCompiledFunction); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(v.NumLocals)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(v.NumParameters)); err != nil {
			return err
		}
		return writeInstructions(w, v.Instructions)

	default:
		return fmt.Errorf("unsupported constant type: %T", c)
	}
}

func readConstants(r io.Reader) ([]object.Object, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	constants := make([]object.Object, count)
	for i := uint32(0); i < count; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read constant %d: %w", i, err)
		}
		constants[i] = c
	}
	return constants, nil
}

func readConstant(r io.Reader) (object.Object, error) {
	var constType byte
	if err := binary.Read(r, binary.LittleEndian, &constType); err != nil {
		return nil, err
	}

	switch constType {
	case constTypeInteger:
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return &object.Integer{Value: v}, nil

	case constTypeString:
		s, err := readByteString(r)
		if err != nil {
			return nil, err
		}
		return &object.String{Value: s}, nil

	case constTypeCompiledFunction:
		var numLocals, numParameters uint32
		if err := binary.Read(r, binary.LittleEndian, &numLocals); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &numParameters); err != nil {
			return nil, err
		}
		ins, err := readInstructions(r)
		if err != nil {
			return nil, err
		}
		return &object.CompiledFunction{
			Instructions:  ins,
			NumLocals:     int(numLocals),
			NumParameters: int(numParameters),
		}, nil

	default:
		return nil, fmt.Errorf("unknown constant type: 0x%02X", constType)
	}
}

func writeInstructions(w io.Writer, ins bytecode.Instructions) error {
	length := uint32(len(ins))
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return err
	}
	_, err := w.Write(ins)
	return err
}

func readInstructions(r io.Reader) (bytecode.Instructions, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return bytecode.Instructions(buf), nil
}

func writeByteString(w io.Writer, s string) error {
	length := uint32(len(s))
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readByteString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
