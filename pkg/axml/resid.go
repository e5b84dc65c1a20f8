package axml

// Framework attribute ids for the manifest attributes the analyser reads.
// Obfuscators sometimes blank or rename the attribute name strings; the
// resource map still carries the id, which is authoritative.
var frameworkAttrs = map[uint32]string{
	0x01010000: "theme",
	0x01010001: "label",
	0x01010002: "icon",
	0x01010003: "name",
	0x0101000b: "sharedUserId",
	0x0101000c: "hasCode",
	0x01010024: "value",
	0x0101020c: "minSdkVersion",
	0x0101021b: "versionCode",
	0x0101021c: "versionName",
	0x01010270: "targetSdkVersion",
	0x01010271: "maxSdkVersion",
	0x010102b7: "installLocation",
	0x0101052c: "roundIcon",
	0x01010576: "versionCodeMajor",
	0x010104ea: "extractNativeLibs",
}

// FrameworkAttrName returns the canonical name for a framework attribute id.
func FrameworkAttrName(id uint32) (string, bool) {
	n, ok := frameworkAttrs[id]
	return n, ok
}
