package domain

import (
	"strings"
	"time"
)

// Stage is one of the seven crop lifecycle phases.
type Stage string

const (
	StageSowing      Stage = "sowing"
	StageGermination Stage = "germination"
	StageVegetative  Stage = "vegetative"
	StageFlowering   Stage = "flowering"
	StageFruiting    Stage = "fruiting"
	StageMaturity    Stage = "maturity"
	StageHarvest     Stage = "harvest"
)

// Stages returns all lifecycle phases in growing order.
func Stages() []Stage {
	return []Stage{
		StageSowing, StageGermination, StageVegetative, StageFlowering,
		StageFruiting, StageMaturity, StageHarvest,
	}
}

// ParseStage validates a raw stage value. Unknown values return ErrUnknownStage.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Stages() {
		if s == known {
			return s, nil
		}
	}
	return "", ErrUnknownStage
}

// Language is a supported reply language.
type Language string

const (
	LangEnglish Language = "en"
	LangHindi   Language = "hi"
	LangMarathi Language = "mr"
)

// Languages returns the supported languages.
func Languages() []Language {
	return []Language{LangEnglish, LangHindi, LangMarathi}
}

// ParseLanguage normalizes a raw language code, defaulting to English.
func ParseLanguage(raw string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(raw))) {
	case LangHindi:
		return LangHindi
	case LangMarathi:
		return LangMarathi
	default:
		return LangEnglish
	}
}

// Farmer is the per-chat profile. ChatID is the stable opaque identity of the
// conversation channel; a chat has at most one profile.
type Farmer struct {
	ChatID       string     `db:"chat_id" json:"chat_id"`
	Name         string     `db:"name" json:"name,omitempty"`
	Crop         string     `db:"crop" json:"crop,omitempty"`
	Stage        Stage      `db:"stage" json:"stage,omitempty"`
	LandSize     *float64   `db:"land_size" json:"land_size,omitempty"`
	LandUnit     string     `db:"land_unit" json:"land_unit,omitempty"`
	SowingDate   *time.Time `db:"sowing_date" json:"sowing_date,omitempty"`
	LocationText string     `db:"location_text" json:"location_text,omitempty"`
	Lat          *float64   `db:"lat" json:"lat,omitempty"`
	Lon          *float64   `db:"lon" json:"lon,omitempty"`
	Language     Language   `db:"language" json:"language"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// HasCoords reports whether the profile carries GPS coordinates.
func (f *Farmer) HasCoords() bool {
	return f != nil && f.Lat != nil && f.Lon != nil
}

// HasLocation reports whether any location information is known.
func (f *Farmer) HasLocation() bool {
	return f != nil && (f.HasCoords() || strings.TrimSpace(f.LocationText) != "")
}

// Lang returns the preferred language, defaulting to English.
func (f *Farmer) Lang() Language {
	if f == nil || f.Language == "" {
		return LangEnglish
	}
	return f.Language
}

// ProfilePatch is a field-wise partial update; nil fields are left untouched.
type ProfilePatch struct {
	Name         *string
	Crop         *string
	Stage        *Stage
	LandSize     *float64
	LandUnit     *string
	SowingDate   *time.Time
	LocationText *string
	Lat          *float64
	Lon          *float64
	Language     *Language
}

// IsZero reports whether the patch carries no changes.
func (p ProfilePatch) IsZero() bool {
	return p.Name == nil && p.Crop == nil && p.Stage == nil &&
		p.LandSize == nil && p.LandUnit == nil && p.SowingDate == nil &&
		p.LocationText == nil && p.Lat == nil && p.Lon == nil && p.Language == nil
}

// Apply merges the patch into the farmer, field-wise last-write-wins.
func (p ProfilePatch) Apply(f *Farmer) {
	if f == nil {
		return
	}
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Crop != nil {
		f.Crop = *p.Crop
	}
	if p.Stage != nil {
		f.Stage = *p.Stage
	}
	if p.LandSize != nil {
		v := *p.LandSize
		f.LandSize = &v
	}
	if p.LandUnit != nil {
		f.LandUnit = *p.LandUnit
	}
	if p.SowingDate != nil {
		v := *p.SowingDate
		f.SowingDate = &v
	}
	if p.LocationText != nil {
		f.LocationText = *p.LocationText
	}
	if p.Lat != nil {
		v := *p.Lat
		f.Lat = &v
	}
	if p.Lon != nil {
		v := *p.Lon
		f.Lon = &v
	}
	if p.Language != nil {
		f.Language = *p.Language
	}
}
