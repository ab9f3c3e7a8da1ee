package tagid

// Family is the broad technology family of a tag.
type Family string

const (
	FamilyMIFARE   Family = "MIFARE"
	FamilyISO15693 Family = "ISO15693"
	FamilyISO7816  Family = "ISO7816"
	FamilyFeliCa   Family = "FeliCa"
	FamilyUnknown  Family = "Unknown"
)

// Classifier is implemented by tags that know their family.
type Classifier interface {
	Family() Family
}

// FamilyOf returns the family of tag, or FamilyUnknown if it cannot tell.
func FamilyOf(tag Tag) Family {
	if isNil(tag) {
		return FamilyUnknown
	}
	c, ok := tag.(Classifier)
	if !ok {
		return FamilyUnknown
	}
	if f := c.Family(); f != "" {
		return f
	}
	return FamilyUnknown
}
