package gateway

import "github.com/amrhady2/go-logix-cip/cip"

// parseTypeName resolves a write request's declared type name to a
// cip.CipType, defaulting to DINT when unrecognized (the common case for a
// JSON number with no type hint).
func parseTypeName(name string) cip.CipType {
	switch name {
	case "BOOL":
		return cip.TypeBOOL
	case "SINT":
		return cip.TypeSINT
	case "INT":
		return cip.TypeINT
	case "DINT":
		return cip.TypeDINT
	case "LINT":
		return cip.TypeLINT
	case "REAL":
		return cip.TypeREAL
	case "LREAL":
		return cip.TypeLREAL
	case "BYTE":
		return cip.TypeBYTE
	case "WORD":
		return cip.TypeWORD
	case "DWORD":
		return cip.TypeDWORD
	case "LWORD":
		return cip.TypeLWORD
	case "STRING":
		return cip.TypeSTRING
	default:
		return cip.TypeDINT
	}
}
