package props

import (
	"fmt"
	"strings"
)

// Field names a single identity field of the host. Build fields and the
// version marker live in different namespaces on the host, see IsVersion.
type Field string

const (
	FieldBrand        Field = "BRAND"
	FieldManufacturer Field = "MANUFACTURER"
	FieldDevice       Field = "DEVICE"
	FieldProduct      Field = "PRODUCT"
	FieldModel        Field = "MODEL"
	FieldFingerprint  Field = "FINGERPRINT"
	// FieldInitialSDK is the first API level the device shipped with.
	FieldInitialSDK Field = "DEVICE_INITIAL_SDK_INT"
)

// AllFields lists every known field in declaration order.
var AllFields = []Field{
	FieldBrand,
	FieldManufacturer,
	FieldDevice,
	FieldProduct,
	FieldModel,
	FieldFingerprint,
	FieldInitialSDK,
}

// IsVersion reports whether the field belongs to the version namespace
// rather than the build namespace.
func (f Field) IsVersion() bool {
	return f == FieldInitialSDK
}

// Valid reports whether f is one of the known fields.
func (f Field) Valid() bool {
	for _, k := range AllFields {
		if k == f {
			return true
		}
	}
	return false
}

func (f Field) String() string {
	return string(f)
}

// ParseField resolves a field name case-insensitively.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToUpper(strings.TrimSpace(name)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown identity field %q", name)
	}
	return f, nil
}
