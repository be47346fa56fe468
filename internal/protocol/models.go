package protocol

import "fmt"

// Brand selects the firmware's state numbering. Husqvarna controllers use a
// 15-entry state table; Gardena controllers use a 9-entry table.
type Brand int

const (
	BrandHusqvarna Brand = iota
	BrandGardena
)

// String returns the brand name
func (b Brand) String() string {
	switch b {
	case BrandHusqvarna:
		return "husqvarna"
	case BrandGardena:
		return "gardena"
	default:
		return fmt.Sprintf("Brand(%d)", int(b))
	}
}

// ParseBrand converts a brand name (as stored in the config file) to a Brand
func ParseBrand(s string) (Brand, error) {
	switch s {
	case "husqvarna":
		return BrandHusqvarna, nil
	case "gardena":
		return BrandGardena, nil
	default:
		return 0, fmt.Errorf("unknown brand %q (expected husqvarna or gardena)", s)
	}
}

// MowerModel describes a controller identified by the DeviceType response
type MowerModel struct {
	Code         [2]byte // Bytes 19..20 of the DeviceType response
	Manufacturer string
	Name         string
	IsHusqvarna  bool
}

// Brand returns the state-numbering variant used by this model
func (m MowerModel) Brand() Brand {
	if m.IsHusqvarna {
		return BrandHusqvarna
	}
	return BrandGardena
}

// String returns "Manufacturer Name"
func (m MowerModel) String() string {
	return fmt.Sprintf("%s %s", m.Manufacturer, m.Name)
}

// mowerModels is keyed by the DeviceType code pair. Only models confirmed
// from captured DeviceType responses are listed.
var mowerModels = map[[2]byte]MowerModel{
	{0x17, 0x01}: {Code: [2]byte{0x17, 0x01}, Manufacturer: "Husqvarna", Name: "305", IsHusqvarna: true},
	{0x0C, 0x00}: {Code: [2]byte{0x0C, 0x00}, Manufacturer: "Husqvarna", Name: "315", IsHusqvarna: true},
	{0x1D, 0x02}: {Code: [2]byte{0x1D, 0x02}, Manufacturer: "Gardena", Name: "Minimo", IsHusqvarna: false},
}

// LookupModel returns the model registered for a DeviceType code pair
func LookupModel(code [2]byte) (MowerModel, bool) {
	m, ok := mowerModels[code]
	return m, ok
}

// Models returns a copy of every registered model
func Models() []MowerModel {
	out := make([]MowerModel, 0, len(mowerModels))
	for _, m := range mowerModels {
		out = append(out, m)
	}
	return out
}
