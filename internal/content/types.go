package content

import (
	"errors"
	"fmt"
)

// Common validation errors.
var (
	ErrInvalidBrief    = errors.New("invalid brief")
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// Type identifies the kind of artifact. It doubles as the content_type
// metadata value in the vector store.
type Type string

const (
	TypeBlog     Type = "blog"
	TypeXDev     Type = "x_dev"
	TypeXCreator Type = "x_creator"
	TypeLinkedIn Type = "linkedin"
	TypeImage    Type = "image"

	// TypeCampaign marks the raw product input of a past run. Duplicate
	// detection compares new input against these records.
	TypeCampaign Type = "campaign"

	// TypeBrief marks the planner's brief of a past run.
	TypeBrief Type = "brief"

	// TypeEdit marks an editorial rejection of a past run.
	TypeEdit Type = "edit"
)

// WriterTypes are the text artifact types produced in the parallel stage.
var WriterTypes = []Type{TypeBlog, TypeXDev, TypeXCreator, TypeLinkedIn}

// ParseType validates s as a known artifact type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeBlog, TypeXDev, TypeXCreator, TypeLinkedIn, TypeImage:
		return t, nil
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// Platform is a social network.
type Platform string

const (
	PlatformX        Platform = "x"
	PlatformLinkedIn Platform = "linkedin"
)

// Persona is the audience voice of a social post.
type Persona string

const (
	PersonaDev      Persona = "dev"
	PersonaCreator  Persona = "creator"
	PersonaLinkedIn Persona = "linkedin"
)

// Usage is where an image is placed.
type Usage string

const (
	UsageBlogHero     Usage = "blog_hero"
	UsageXCard        Usage = "x_card"
	UsageLinkedInHero Usage = "linkedin_hero"
	UsageSocial       Usage = "generic_social"
)

func validUsage(u Usage) bool {
	switch u {
	case UsageBlogHero, UsageXCard, UsageLinkedInHero, UsageSocial:
		return true
	}
	return false
}

// Dimensions is a pixel size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var aspectRatios = map[string]Dimensions{
	"16:9": {Width: 1920, Height: 1080},
	"1:1":  {Width: 1080, Height: 1080},
	"4:5":  {Width: 1080, Height: 1350},
	"9:16": {Width: 1080, Height: 1920},
}

// DimensionsFor returns the render size for a supported aspect ratio.
func DimensionsFor(aspectRatio string) (Dimensions, bool) {
	d, ok := aspectRatios[aspectRatio]
	return d, ok
}
