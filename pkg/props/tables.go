package props

// Names of the built-in profiles.
const (
	ProfileReferenceA = "pixel5"
	ProfileReferenceB = "pixelxl"
	ProfileCertified  = "certified"
	ProfileStockFP    = "stock-fingerprint"
	ProfileModelOnly  = "model"
)

// SDKNMR1 is the API level stamped into the certified profile.
const SDKNMR1 = 25

// ReferenceDeviceA is the default profile for vendor packages.
func ReferenceDeviceA() Profile {
	return NewProfile(ProfileReferenceA,
		Entry{FieldBrand, String("google")},
		Entry{FieldManufacturer, String("Google")},
		Entry{FieldDevice, String("redfin")},
		Entry{FieldProduct, String("redfin")},
		Entry{FieldModel, String("Pixel 5")},
		Entry{FieldFingerprint, String("google/redfin/redfin:13/TQ1A.230205.002/9471150:user/release-keys")},
	)
}

// ReferenceDeviceB is the profile used for the photo backup package.
func ReferenceDeviceB() Profile {
	return NewProfile(ProfileReferenceB,
		Entry{FieldBrand, String("google")},
		Entry{FieldManufacturer, String("Google")},
		Entry{FieldDevice, String("marlin")},
		Entry{FieldProduct, String("marlin")},
		Entry{FieldModel, String("Pixel XL")},
		Entry{FieldFingerprint, String("google/marlin/marlin:10/QP1A.191005.007.A3/5972272:user/release-keys")},
	)
}

// Certified builds the certified profile from configured values. Device and
// product both receive the device codename.
func Certified(fingerprint, device, model string) Profile {
	return NewProfile(ProfileCertified,
		Entry{FieldFingerprint, String(fingerprint)},
		Entry{FieldProduct, String(device)},
		Entry{FieldDevice, String(device)},
		Entry{FieldModel, String(model)},
		Entry{FieldInitialSDK, Int(SDKNMR1)},
	)
}

// StockFingerprint overrides only the fingerprint.
func StockFingerprint(fingerprint string) Profile {
	return NewProfile(ProfileStockFP, Entry{FieldFingerprint, String(fingerprint)})
}

// ModelOnly overrides only the model.
func ModelOnly(model string) Profile {
	return NewProfile(ProfileModelOnly, Entry{FieldModel, String(model)})
}
