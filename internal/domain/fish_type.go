package domain

// FishType is a taxonomy row. Both names are unique.
type FishType struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	CommonName     string `gorm:"type:varchar(40);not null;uniqueIndex:idx_fish_types_common_name" json:"common_name"`
	ScientificName string `gorm:"type:varchar(40);not null;uniqueIndex:idx_fish_types_scientific_name" json:"scientific_name"`
	Description    string `gorm:"type:text;not null" json:"description"`
}

// TableName returns the database table name for FishType.
func (FishType) TableName() string {
	return "fish_types"
}
